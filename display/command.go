// Package display renders command results for humans and machines.
package display

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teranos/flashbuild/errors"
)

// ShouldOutputJSON determines if a command should output JSON.
// An explicit --json on the command wins, then the global flag, then log.json
// from configuration.
func ShouldOutputJSON(cmd *cobra.Command, v *viper.Viper) bool {
	if cmd != nil {
		if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
			on, _ := cmd.Flags().GetBool("json")
			return on
		}
		if on, _ := cmd.Root().PersistentFlags().GetBool("json"); on {
			return true
		}
	}
	return v != nil && v.GetBool("log.json")
}

// OutputJSON marshals and prints JSON to stdout using MarshalJSON
func OutputJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// WriteJSON marshals v with MarshalJSON and writes it to w
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
