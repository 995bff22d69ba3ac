package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Stream Proxy API
// @version 1.0
// @description Extracts playable video URLs from iframe-nesting pages by driving a real browser.
// @contact.name Stream Proxy Maintainers
// @contact.url https://github.com/rhuertas/streamproxy
// @BasePath /
