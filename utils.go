package arango

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/rs/xid"
)

type M map[string]any

func Map() M {
	return M{}
}

func (m M) Set(key string, value any) M {
	m[key] = value
	return m
}

func (m M) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// GetModelName derives the collection name from a model: a string is taken
// as-is, a struct (or pointer to one) maps to the snake_case type name.
func GetModelName(model any) string {
	if name, ok := model.(string); ok {
		return name
	}

	modelVal := reflect.ValueOf(model)
	k := modelVal.Kind()
	for k == reflect.Pointer || k == reflect.UnsafePointer {
		if modelVal.IsNil() {
			return ""
		}
		modelVal = modelVal.Elem()
		k = modelVal.Kind()
	}
	if k != reflect.Struct {
		return ""
	}

	return ToSnake(modelVal.Type().Name())
}

func ToSnake(text string) string {
	return strcase.ToSnakeWithIgnore(text, ".")
}

// GetKey extracts the document key from a model: the "_key" entry of a map,
// or the struct field tagged json:"_key" or db:"key". Embedded structs are
// searched too. Empty when the model carries no key.
func GetKey(model any) string {
	if m, ok := model.(M); ok {
		key, _ := m["_key"].(string)
		return key
	}
	if m, ok := model.(map[string]any); ok {
		key, _ := m["_key"].(string)
		return key
	}

	modelVal := reflect.ValueOf(model)
	k := modelVal.Kind()
	for k == reflect.Pointer || k == reflect.UnsafePointer {
		if modelVal.IsNil() {
			return ""
		}
		modelVal = modelVal.Elem()
		k = modelVal.Kind()
	}
	if k != reflect.Struct {
		return ""
	}

	modelType := modelVal.Type()
	for i := 0; i < modelType.NumField(); i++ {
		fieldType := modelType.Field(i)

		if fieldType.Anonymous {
			if key := GetKey(modelVal.Field(i).Interface()); key != "" {
				return key
			}
			continue
		}

		if !isKeyField(fieldType) {
			continue
		}
		if key, ok := modelVal.Field(i).Interface().(string); ok {
			return key
		}
	}
	return ""
}

func isKeyField(field reflect.StructField) bool {
	if tagName(field.Tag.Get("json")) == "_key" {
		return true
	}
	for _, v := range strings.Split(strings.Trim(field.Tag.Get("db"), ", ;"), ",") {
		if v == "key" {
			return true
		}
	}
	return false
}

// tagName returns the name part of a json-style tag value.
func tagName(tag string) string {
	if i := strings.Index(tag, ","); i >= 0 {
		return tag[:i]
	}
	return tag
}

// ParseModelIndex returns the collection name of the model and the fields
// tagged db:"index", which EnsureCollections turns into persistent indexes.
// Index fields are named the way they appear in the stored document.
func ParseModelIndex(model any) (string, []string) {
	name := GetModelName(model)
	if name == "" {
		return "", nil
	}

	modelVal := reflect.ValueOf(model)
	k := modelVal.Kind()
	for k == reflect.Pointer || k == reflect.UnsafePointer {
		if modelVal.IsNil() {
			return name, nil
		}
		modelVal = modelVal.Elem()
		k = modelVal.Kind()
	}
	if k != reflect.Struct {
		return name, nil
	}

	return name, indexFields(modelVal.Type())
}

func indexFields(modelType reflect.Type) []string {
	var indexes []string
	for i := 0; i < modelType.NumField(); i++ {
		fieldType := modelType.Field(i)

		if fieldType.Anonymous {
			embedded := fieldType.Type
			for embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				indexes = append(indexes, indexFields(embedded)...)
			}
			continue
		}

		for _, v := range strings.Split(strings.Trim(fieldType.Tag.Get("db"), ", ;"), ",") {
			if v != "index" {
				continue
			}
			field := tagName(fieldType.Tag.Get("json"))
			if field == "" {
				field = fieldType.Name
			}
			indexes = append(indexes, field)
		}
	}
	return indexes
}

// NewKey returns a sortable unique document key.
func NewKey() string {
	return xid.New().String()
}

func Pointer[T any](v T) *T {
	return &v
}

func ToBytes(data any) []byte {
	var value []byte
	switch v := data.(type) {
	case []byte:
		value = v
	case string: // Prevent repeated double quotes in the string
		value = []byte(v)
	default:
		// no encode html tag
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetEscapeHTML(false)
		encoder.Encode(data)
		buffer.Truncate(buffer.Len() - 1) // remove suffix "\n"
		value = buffer.Bytes()
	}
	return value
}

func ToEntity[T any](item any) *T {
	o := new(T)
	if err := json.Unmarshal(ToBytes(item), o); err != nil {
		panic(err)
	}
	return o
}

func ToEntities[T any](items []M) []*T {
	var os []*T
	for _, v := range items {
		os = append(os, ToEntity[T](v))
	}
	return os
}
