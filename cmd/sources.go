package cmd

import (
	"os"
	"slices"
	"strings"

	"github.com/jmurray2011/spindle/internal/decode"
	"github.com/jmurray2011/spindle/internal/output"
	"github.com/jmurray2011/spindle/internal/source"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured source aliases",
	Long: `List source aliases defined in the configuration file and the
provider kinds this build can open.

Source aliases can be defined in ~/.spindle/config.yaml:

  sources:
    web:
      uri: file:///var/log/web.log
      preset: log4j
      description: front-end access log
    events:
      uri: udp://:7071?protocol=log4j

  default_sources: ["@web", "@events"]

Use aliases with @ prefix in commands:
  spindle tail @web
  spindle serve @web @events`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	app := GetApp(cmd)
	cfg, err := app.LoadSources()
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(app.GetOutputFormat(), os.Stdout)
	if err := formatter.FormatAliases(aliasInfos(cfg)); err != nil {
		return err
	}

	if formatter.Format() == output.FormatText {
		app.Render.Section("Available")
		app.Render.KeyValueIndent("Provider kinds", strings.Join(source.Kinds(), ", "), 1)
		app.Render.KeyValueIndent("Decode presets", strings.Join(decode.PresetNames(), ", "), 1)
		if len(cfg.Sources) == 0 {
			app.Render.Info("Create aliases in %s (spindle init writes an example).", app.Config.ConfigPath)
		}
	}
	return nil
}

// aliasInfos describes each alias in name order. Kind comes from the
// alias URI; an unparseable URI leaves it blank.
func aliasInfos(cfg *source.Config) []output.AliasInfo {
	names := cfg.AliasNames()
	infos := make([]output.AliasInfo, 0, len(names))
	for _, name := range names {
		a := cfg.Sources[name]
		info := output.AliasInfo{
			Name:        name,
			URI:         a.URI,
			Preset:      a.Preset,
			Description: a.Description,
			Default:     slices.Contains(cfg.DefaultSources, "@"+name),
		}
		if s, err := source.ParseURI(a.URI); err == nil {
			info.Kind = s.Kind()
		}
		infos = append(infos, info)
	}
	return infos
}
