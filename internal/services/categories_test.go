package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/wp-login.php", "wordpress"},
		{"/WP-ADMIN/", "wordpress"},
		{"/administrator/index.php", "admin_panels"},
		{"/cart/checkout", "e_commerce"},
		{"/pma/index.php", "database_endpoints"},
		{"/webmail/", "mail_servers"},
		{"/jenkins/script", "devops_tools"},
		{"/grafana/", "monitoring_tools"},
		{"/.env", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizePath(tt.path))
		})
	}
}
