package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "SNAPCAM_"

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// already set are kept, missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig fills opts with precedence CLI flag > env var > config file.
// opts must point to a flat struct; its Config field names the TOML file,
// toml tags give dotted keys and env tags give variable names without
// EnvPrefix. Flags changed on cmd are left untouched.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var configPath string
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		configPath = f.String()
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("failed to read config: %w", err)
		default:
			var doc map[string]any
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
			for i := 0; i < v.NumField(); i++ {
				ft := t.Field(i)
				if changed[fieldNameToFlag(ft.Name)] {
					continue
				}
				if path := ft.Tag.Get("toml"); path != "" {
					if value := getNestedValue(doc, path); value != nil {
						if err := setFieldValue(v.Field(i), value); err != nil {
							return fmt.Errorf("%s: %w", path, err)
						}
					}
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		if changed[fieldNameToFlag(ft.Name)] {
			continue
		}
		key := ft.Tag.Get("env")
		if key == "" {
			continue
		}
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok && raw != "" {
			if err := setFieldValueFromString(v.Field(i), raw); err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
		}
	}

	return nil
}

// ApplyDefaults sets every field that has a default tag. Commands that are
// not driven by humacli use it to start from the same values.
func ApplyDefaults(opts any) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		def, ok := ft.Tag.Lookup("default")
		if !ok || def == "" {
			continue
		}
		if err := setFieldValueFromString(v.Field(i), def); err != nil {
			return fmt.Errorf("default for %s: %w", ft.Name, err)
		}
	}
	return nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "CameraWidth" -> "camera-width", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var out []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// getNestedValue resolves a dotted path in a decoded TOML document.
func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue assigns a decoded TOML value.
func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		switch x := value.(type) {
		case string:
			d, err := time.ParseDuration(x)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		case int64:
			field.SetInt(x * int64(time.Millisecond))
		default:
			return fmt.Errorf("want duration, got %T", value)
		}
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", value)
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint32:
		i, ok := value.(int64)
		if !ok || i < 0 {
			return fmt.Errorf("want non-negative integer, got %v", value)
		}
		field.SetUint(uint64(i))
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want array, got %T", value)
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

// setFieldValueFromString assigns an environment value.
func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint32:
		i, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		field.SetUint(i)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
