// Package lib bundles the internal scripts and the build configuration
// document into the binary.
package lib

import (
	"embed"
	"strings"
)

// FS holds every bundled script under its module path, plus config.json.
//
//go:embed bootstrap internal config.json
var FS embed.FS

// ConfigFile is the name of the configuration document within FS.
const ConfigFile = "config.json"

// BootstrapParameters is the parameter list bootstrap scripts are compiled
// with.
var BootstrapParameters = []string{"process", "require"}

// ModuleParameters is the parameter list internal library modules are
// compiled with.
var ModuleParameters = []string{"exports", "require", "module", "process", "internal_binding"}

// ParametersFor returns the parameter list the module id is compiled with.
func ParametersFor(id string) []string {
	if strings.HasPrefix(id, "bootstrap/") {
		return BootstrapParameters
	}
	return ModuleParameters
}
