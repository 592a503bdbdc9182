package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// The API distinguishes exactly two capabilities: query_reader covers the
// question/browse routes (query, collections, schema, pipeline run) and
// data_writer covers the ingest routes. Keys carry one or both.
const (
	RoleQueryReader = "query_reader"
	RoleDataWriter  = "data_writer"
)

var knownRoles = map[string]bool{
	RoleQueryReader: true,
	RoleDataWriter:  true,
}

type Identity struct {
	TenantID string
	Roles    []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// CanQuery reports whether the identity may run questions and browse
// collections.
func (i Identity) CanQuery() bool { return i.HasRole(RoleQueryReader) }

// CanIngest reports whether the identity may load data.
func (i Identity) CanIngest() bool { return i.HasRole(RoleDataWriter) }

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator resolves keys from a config-supplied list. Entries
// take the form key:tenant:role|role; roles must come from the set above so a
// typo in config surfaces at startup rather than as a silent 403.
type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		key, identity, err := parseKeyEntry(entry)
		if err != nil {
			return nil, err
		}
		validator.keys[key] = identity
	}
	return validator, nil
}

func parseKeyEntry(entry string) (string, Identity, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: expected key:tenant:role|role", entry)
	}
	key := strings.TrimSpace(parts[0])
	tenant := strings.TrimSpace(parts[1])
	if key == "" || tenant == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: empty key/tenant", entry)
	}

	seen := map[string]bool{}
	roles := make([]string, 0, 2)
	for _, role := range strings.Split(strings.TrimSpace(parts[2]), "|") {
		role = strings.TrimSpace(role)
		if role == "" || seen[role] {
			continue
		}
		if !knownRoles[role] {
			return "", Identity{}, fmt.Errorf("invalid static key entry %q: unknown role %q (want %s or %s)", entry, role, RoleQueryReader, RoleDataWriter)
		}
		seen[role] = true
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
	}
	sort.Strings(roles)
	return key, Identity{TenantID: tenant, Roles: roles}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
