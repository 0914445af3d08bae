// Package docs provides generated OpenAPI documentation.
//
// Tome API
//
//	@title			Tome API
//	@version		1.0
//	@description	Reading pipeline API for ingesting works, running chapter stages, and browsing notes.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/tomehq/tome
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:4242
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/tome/serve.go -o ./swagger --parseDependency --parseInternal
