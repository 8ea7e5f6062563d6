package dbuslink

import (
	"fmt"

	dbus "github.com/godbus/dbus/v5"
)

// signatures maps the human type tags accepted by Typed to D-Bus signatures.
var signatures = map[string]string{
	"string":        "s",
	"boolean":       "b",
	"byte":          "y",
	"int16":         "n",
	"uint16":        "q",
	"int32":         "i",
	"uint32":        "u",
	"int64":         "x",
	"uint64":        "t",
	"double":        "d",
	"object":        "o",
	"array{string}": "as",
}

// Typed wraps value in a variant carrying the D-Bus type named by tag.
// The Go type of value must already match the tag; no conversion is done.
func Typed(tag string, value interface{}) (dbus.Variant, error) {
	sig, ok := signatures[tag]
	if !ok {
		return dbus.Variant{}, fmt.Errorf("dbuslink: unknown type tag %q", tag)
	}
	if value == nil {
		return dbus.Variant{}, fmt.Errorf("dbuslink: nil value for type %q", tag)
	}
	want := dbus.ParseSignatureMust(sig)
	got, err := signatureOf(value)
	if err != nil {
		return dbus.Variant{}, err
	}
	if got != want {
		return dbus.Variant{}, fmt.Errorf("dbuslink: value %v has signature %s, want %s (%s)", value, got, want, tag)
	}
	return dbus.MakeVariantWithSignature(value, want), nil
}

// signatureOf is dbus.SignatureOf without the panic on unencodable types.
func signatureOf(value interface{}) (sig dbus.Signature, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dbuslink: cannot encode %T: %v", value, r)
		}
	}()
	return dbus.SignatureOf(value), nil
}

// Variant wraps value using the signature of its Go type. A dbus.Variant is
// returned unchanged.
func Variant(value interface{}) (dbus.Variant, error) {
	if v, ok := value.(dbus.Variant); ok {
		return v, nil
	}
	if value == nil {
		return dbus.Variant{}, fmt.Errorf("dbuslink: nil value")
	}
	sig, err := signatureOf(value)
	if err != nil {
		return dbus.Variant{}, err
	}
	return dbus.MakeVariantWithSignature(value, sig), nil
}

// String reads a string-typed property.
func String(v dbus.Variant, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("dbuslink: expected string, got %s", v.Signature())
	}
	return s, nil
}

// Bool reads a boolean-typed property.
func Bool(v dbus.Variant, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	b, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dbuslink: expected boolean, got %s", v.Signature())
	}
	return b, nil
}
