package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"companies/*/backup_*.json", "companies/acme/backup_2024-01-01_00-00-00.000.json", true},
		{"companies/*/backup_*.json", "companies/acme/nested/backup_x.json", false},
		{"companies/acme/backup_*.json", "companies/globex/backup_x.json", false},
		{"companies/**", "companies/acme/backup_x.json", true},
		{"**/summary.json", "temporary/companies/acme/diff/summary.json", true},
		{"**/summary.json", "summary.json", true},
		{"temporary/companies/acme/diff/*.json", "temporary/companies/acme/diff/Customers.json", true},
		{"exact/path.json", "exact/path.json", true},
		{"exact/path.json", "exact/path.json.bak", false},
		{"[", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.name))
		})
	}
}

func TestStaticPrefix(t *testing.T) {
	assert.Equal(t, "companies/", staticPrefix("companies/*/backup_*.json"))
	assert.Equal(t, "companies/acme/", staticPrefix("companies/acme/backup_*.json"))
	assert.Equal(t, "", staticPrefix("**/x.json"))
	assert.Equal(t, "a/b.json", staticPrefix("a/b.json"))
}

func TestMetadataGet_CaseInsensitive(t *testing.T) {
	md := Metadata{"companyname": "Acme", "companyId": "acme"}
	assert.Equal(t, "Acme", md.Get("companyName"))
	assert.Equal(t, "acme", md.Get("companyId"))
	assert.Equal(t, "", md.Get("missing"))
}
