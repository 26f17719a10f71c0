// Package cli provides the gatehouse command-line interface.
//
// # Commands
//
// migrate: Apply database migrations
//
//	gatehouse migrate --postgres-url postgres://localhost:5432/gatehouse
//
// check: Run one permission check against the live database
//
//	gatehouse check \
//		--workspace ws-1 \
//		--user user-1 \
//		--resource projects \
//		--permission view
//
// Add --no-cache to bypass the permission cache and hit the resolver
// directly.
//
// seed-templates: Print the role template catalog, including the override
// rows each template would persist
//
//	gatehouse seed-templates
//
// # Configuration
//
// All commands read GATEHOUSE_* environment variables and the optional
// config file named by GATEHOUSE_CONFIG_FILE; see pkg/config.
package cli
