package service

import (
	_ "embed"
)

// testTemplate is a minimal multi-file app in the paste format, used to check
// the deployment pipeline end to end.
//
//go:embed templates/test_app.txt
var testTemplate string

// TestTemplate returns the hello-world paste blob.
func TestTemplate() string {
	return testTemplate
}
