package cli

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
)

func echoCmd() *cobra.Command {
	return &cobra.Command{
		Use: "echo",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				cmd.Println(a)
			}
			return nil
		},
	}
}

func TestRunCapturesStdout(t *testing.T) {
	result := Run(echoCmd(), "hello", "world")

	result.AssertSuccess(t)
	result.AssertContains(t, "hello")
	result.AssertContains(t, "world")
	result.AssertPrefix(t, "hello")
	result.AssertNotContains(t, "goodbye")
}

func TestRunCapturesError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "boom",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("it broke")
		},
	}

	result := Run(cmd)
	result.AssertError(t)
	if result.Err.Error() != "it broke" {
		t.Errorf("Err = %v", result.Err)
	}
}

func TestRunCapturesStderr(t *testing.T) {
	cmd := &cobra.Command{
		Use: "warn",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.PrintErrln("something odd")
			return nil
		},
	}

	result := Run(cmd)
	result.AssertSuccess(t)
	if result.Stderr != "something odd\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
}

func TestRunWithFlags(t *testing.T) {
	var loud bool
	cmd := &cobra.Command{
		Use: "greet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loud {
				cmd.Println("HELLO")
			} else {
				cmd.Println("hello")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&loud, "loud", false, "shout")

	Run(cmd, "--loud").AssertContains(t, "HELLO")
}
