// Package configbinder decodes loosely typed maps (YAML sections, stored attribute maps)
// into typed structs using mapstructure.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds properties to target using the "yaml" struct tag.
// Weak typing is enabled, so "5" decodes into an int and "true" into a bool.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	return BindPropertiesWithTag(properties, target, "yaml")
}

// BindPropertiesWithTag binds properties to target using the given struct tag name.
func BindPropertiesWithTag(properties map[string]interface{}, target interface{}, tagName string) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           target,
		TagName:          tagName,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType != nil && targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %v: %w", targetType, err)
	}
	return nil
}
