// =============================================================================
// CSV to OFX Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   csv2ofx convert       - Convert statement exports to OFX
//   csv2ofx validate      - Validate configuration and bank profiles
//   csv2ofx version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core conversion logic (not for external import)
//   - pkg/           : Shared file utilities
//   - configs/       : Sample main configuration and bank profiles
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/CSV-to-OFX-conversion/cmd"
)

func main() {
	cmd.Execute()
}
