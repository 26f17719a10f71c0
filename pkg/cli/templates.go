package cli

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/platinummonkey/gatehouse/pkg/templates"
)

func newSeedTemplatesCommand() *Command {
	cmd := &Command{
		Name:        "seed-templates",
		Description: "Print the role template catalog with stored permission diffs",
		Flags:       flag.NewFlagSet("seed-templates", flag.ExitOnError),
	}

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		type entry struct {
			templates.Template
			StoredOverrides interface{} `json:"stored_overrides"`
		}

		all := templates.List()
		out := make([]entry, 0, len(all))
		for i := range all {
			out = append(out, entry{
				Template:        all[i],
				StoredOverrides: templates.Diff(&all[i]),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return cmd
}
