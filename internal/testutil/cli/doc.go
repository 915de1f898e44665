// Package cli provides shared test utilities for testing cobra commands.
//
// It eliminates boilerplate when testing CLI commands by providing helpers
// for command execution, output capture, and assertions.
//
// # Basic Usage
//
// Execute a command and check output:
//
//	result := cli.Run(myCmd, "--help")
//	result.AssertSuccess(t)
//	result.AssertContains(t, "Usage:")
//
// # Output Capture
//
// Run captures both stdout and stderr, as long as the command writes
// through cmd.Print/cmd.OutOrStdout rather than os.Stdout:
//
//	result := cli.Run(myCmd, "version")
//	if result.Err != nil {
//		t.Fatalf("command failed: %v", result.Err)
//	}
//	fmt.Println(result.Stdout)
//	fmt.Println(result.Stderr)
//
// # Assertion Methods
//
// CommandResult provides fluent assertion methods:
//
//	result := cli.Run(myCmd)
//	result.AssertSuccess(t)                    // No error
//	result.AssertError(t)                      // Expects error
//	result.AssertContains(t, "expected text")  // Stdout contains
//	result.AssertPrefix(t, "hvsctl version")   // Stdout starts with
package cli
