package main

// General API documentation for swaggo. Regenerate the served document with
// `swag init -g cmd/imaged/docs.go -o internal/httpapi/docs`.
//
// @title           imaged API
// @version         1.0
// @description     Text-to-image generation over a lazily loaded, idle-reclaimed model.
//
// @contact.name   imaged maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
