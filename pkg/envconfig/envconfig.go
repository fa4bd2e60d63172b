// Package envconfig walks a Config struct's `env`/`envDefault` tags and
// fills it from the process environment, the small piece the teacher
// leaves to its internal (unavailable to this pack) lib-commons helper
// after loading a local .env with github.com/joho/godotenv.
package envconfig

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
)

// Load reads cfg's exported fields using their `env` struct tag as the
// environment variable name and their `envDefault` tag as a fallback. cfg
// must be a pointer to a struct. Supported field kinds: string, int, int64,
// bool.
func Load(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("envconfig: Load requires a pointer to a struct, got %T", cfg)
	}

	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		key := field.Tag.Get("env")
		if key == "" {
			continue
		}

		raw, ok := os.LookupEnv(key)
		if !ok {
			raw, ok = field.Tag.Lookup("envDefault")
			if !ok {
				continue
			}
		}

		if err := setField(v.Field(i), raw); err != nil {
			return fmt.Errorf("envconfig: field %s (env %s): %w", field.Name, key, err)
		}
	}

	return nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}

		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}

	return nil
}
