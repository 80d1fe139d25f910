//go:build tools

package tools

// mockery is used as an installed binary (not via go run), so no import is
// needed. Regenerate pkg/netchan/mocks from the repository root with:
//
//	mockery --name Handler --dir pkg/netchan --output pkg/netchan/mocks --with-expecter
