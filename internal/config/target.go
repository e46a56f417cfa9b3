package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TargetType selects a sink implementation.
type TargetType string

const (
	TypePostgres TargetType = "postgres"
	TypeSQLite   TargetType = "sqlite"
	TypeHTTPPost TargetType = "http_post"
	TypeCurlPost TargetType = "curlpost"
	TypeKafka    TargetType = "kafka"
	TypeMQTT     TargetType = "mqtt"
)

// TargetTypes lists every supported type.
var TargetTypes = []TargetType{TypePostgres, TypeSQLite, TypeHTTPPost, TypeCurlPost, TypeKafka, TypeMQTT}

var typeAliases = map[string]TargetType{
	"storage":         TypePostgres,
	"remote-push":     TypeHTTPPost,
	"generic-webhook": TypeCurlPost,
}

// ParseTargetType resolves a type tag or one of its aliases.
func ParseTargetType(s string) (TargetType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[s]; ok {
		return t, nil
	}
	for _, t := range TargetTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// Target is one [target_<name>] table. Type-specific keys are decoded by the
// sink constructor through Decode.
type Target struct {
	Name        string
	Type        TargetType
	Active      bool
	MinInterval time.Duration

	md   toml.MetaData
	prim toml.Primitive
}

type targetHeader struct {
	Type        string    `toml:"type"`
	Active      *bool     `toml:"active"`
	MinInterval *Duration `toml:"min_interval"`
}

func newTarget(md toml.MetaData, section string, prim toml.Primitive) (Target, error) {
	var h targetHeader
	if err := md.PrimitiveDecode(prim, &h); err != nil {
		return Target{}, fmt.Errorf("section %s: %w", section, err)
	}
	typ, err := ParseTargetType(h.Type)
	if err != nil {
		return Target{}, fmt.Errorf("section %s: %w", section, err)
	}

	t := Target{
		Name:   strings.TrimPrefix(section, targetPrefix),
		Type:   typ,
		Active: true,
		md:     md,
		prim:   prim,
	}
	if h.Active != nil {
		t.Active = *h.Active
	}
	if h.MinInterval != nil {
		t.MinInterval = h.MinInterval.Duration
	}
	return t, nil
}

// Decode fills v with the target's table.
func (t Target) Decode(v any) error {
	if err := t.md.PrimitiveDecode(t.prim, v); err != nil {
		return fmt.Errorf("target %s: %w", t.Name, err)
	}
	return nil
}

// HasKey reports whether the target's table sets key.
func (t Target) HasKey(key string) bool {
	return t.md.IsDefined(targetPrefix+t.Name, key)
}

// Secret returns the value of the environment variable named by envKey.
func Secret(envKey string) string {
	if envKey == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
