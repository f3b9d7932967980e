// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var (
	cliBinary         string
	coordinatorBinary string
)

func TestMain(m *testing.M) {
	// 1. Build the binaries
	cwd, _ := os.Getwd()
	cliBinary = filepath.Join(cwd, "switchyard_e2e")
	coordinatorBinary = filepath.Join(cwd, "coordinator_e2e")

	// Assuming running from test/e2e/, go up to root
	builds := []struct{ out, pkg string }{
		{cliBinary, "../../cmd/switchyard"},
		{coordinatorBinary, "../../cmd/coordinator"},
	}
	for _, b := range builds {
		cmd := exec.Command("go", "build", "-o", b.out, b.pkg)
		if out, err := cmd.CombinedOutput(); err != nil {
			fmt.Printf("Failed to build %s: %v\n%s\n", b.pkg, err, out)
			os.Exit(1)
		}
	}

	// 2. Run Tests
	exitCode := m.Run()

	// 3. Cleanup
	os.Remove(cliBinary)
	os.Remove(coordinatorBinary)
	os.Exit(exitCode)
}
