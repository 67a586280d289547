package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/store"
)

// ListOptions holds flags for the ls command.
type ListOptions struct {
	*RootOptions
	Database string
	Plugins  bool
	Where    []string
}

// NetworkListing is one stored network version.
type NetworkListing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Hash string `json:"hash"`
	Seq  int64  `json:"seq"`
}

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored networks or cached plugins",
		Long: `List the network versions stored in the database, oldest first.
With --plugins, list the cached plugin metadata written by scan --db.

--where field=value keeps only matching rows; repeated filters must all
match. Networks filter on id, name, hash and seq; plugins on path, index,
unique_id, label, name, maker, type_name and broken.

Examples:
  synthnet ls --db ./synthnet.db
  synthnet ls --db ./synthnet.db --where name=lead
  synthnet ls --db ./synthnet.db --plugins --where broken=true --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Plugins, "plugins", false, "list cached plugins instead of networks")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter field=value (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	filter, err := parseWhere(opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Plugins {
		recs, err := st.FindPlugins(cmd.Context(), filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list plugins", err)
		}
		return listPlugins(formatter, recs)
	}

	summaries, err := st.FindNetworks(cmd.Context(), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list networks", err)
	}
	listing := make([]NetworkListing, 0, len(summaries))
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		listing = append(listing, NetworkListing{ID: s.ID, Name: s.Name, Hash: s.Hash, Seq: s.Seq})
		rows = append(rows, []string{strconv.FormatInt(s.Seq, 10), s.Name, s.ID, shortHash(s.Hash)})
	}
	return formatter.Table(listing, []string{"SEQ", "NAME", "ID", "HASH"}, rows)
}

func listPlugins(formatter *OutputFormatter, recs []ir.PluginRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		status := "ok"
		if r.Broken {
			status = "broken: " + r.Reason
		}
		rows = append(rows, []string{r.TypeName, strconv.FormatInt(r.UniqueID, 10), r.Path, status})
	}
	if recs == nil {
		recs = []ir.PluginRecord{}
	}
	return formatter.Table(recs, []string{"TYPE", "ID", "PATH", "STATUS"}, rows)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// parseWhere turns "field=value" filters into a conjunction. Values are
// read as YAML scalars like --set values. No filters yield nil.
func parseWhere(exprs []string) (store.Predicate, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	and := store.And{}
	for _, e := range exprs {
		field, raw, ok := strings.Cut(e, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("where %q: expected field=value", e)
		}
		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("where %q: %w", e, err)
		}
		v, err := ir.FromAny(decoded)
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", e, err)
		}
		and.Predicates = append(and.Predicates, store.Equals{Field: field, Value: v})
	}
	return and, nil
}
