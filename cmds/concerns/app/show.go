package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mandelsoft/goutils/sliceutils"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/concerns/pkg/access"
	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/landscape"
	"github.com/mandelsoft/concerns/pkg/model"
)

type Show struct {
	cmd *cobra.Command

	mainopts *Options
	output   string
	blocked  bool
}

func NewShow(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show {<kind>/<id>|<kind>/<name>} <options>",
		Short: "show the concerns of the objects of a landscape",
	}

	c := &Show{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.StringVarP(&c.output, "output", "o", "", "output format (yaml, json)")
	flags.BoolVarP(&c.blocked, "blocked", "b", false, "show objects which are not ready, only")
	return cmd
}

// Entry is the output shape of the concerns of an object.
type Entry struct {
	access.ObjectConcerns `json:",inline"`
	Name                  string `json:"name,omitempty"`
}

func (c *Show) Run(args []string) error {
	e, idx, err := c.mainopts.Setup(c.cmd.Context(), nil, true)
	if err != nil {
		return err
	}

	var ids []model.ObjectId
	if len(args) == 0 {
		ids = e.ListObjectIds("")
	} else {
		for _, arg := range args {
			id, err := resolve(idx, arg)
			if err != nil {
				return err
			}
			if e.Snapshot().Object(id) == nil {
				return fmt.Errorf("%s: object not found", arg)
			}
			ids = append(ids, id)
		}
	}

	var list []Entry
	s := e.Snapshot()
	for _, id := range ids {
		if c.blocked && s.IsReady(id) {
			continue
		}
		records := concern.Records(s.ConcernsOf(id))
		if records == nil {
			records = []concern.Record{}
		}
		list = append(list, Entry{
			ObjectConcerns: access.ObjectConcerns{
				Object:   id,
				Ready:    s.IsReady(id),
				Concerns: records,
			},
			Name: idx.Name(id),
		})
	}

	switch strings.ToLower(strings.TrimSpace(c.output)) {
	case "":
		PrintEntries(c.cmd.OutOrStdout(), list)
	case "json":
		data, err := json.Marshal(list)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "%s\n", string(data))
	case "yaml":
		data, err := yaml.Marshal(list)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.cmd.OutOrStdout(), "%s", string(data))
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}
	return nil
}

// resolve parses <kind>/<id> or <kind>/<name>, where names of services
// and components are prefixed by the names of their owners.
func resolve(idx *landscape.Index, arg string) (model.ObjectId, error) {
	i := strings.Index(arg, "/")
	if i < 0 {
		return model.ObjectId{}, fmt.Errorf("%s: <kind>/<name> or <kind>/<id> required", arg)
	}
	kind, err := model.ParseKind(arg[:i])
	if err != nil {
		return model.ObjectId{}, err
	}
	if n, err := strconv.ParseInt(arg[i+1:], 10, 64); err == nil {
		return model.NewObjectId(kind, n), nil
	}
	id := idx.Lookup(kind, arg[i+1:])
	if id.IsZero() {
		return id, fmt.Errorf("%s: object not found", arg)
	}
	return id, nil
}

func PrintEntries(w io.Writer, list []Entry) {
	if len(list) == 0 {
		fmt.Fprintf(w, "no object found\n")
		return
	}
	columnList := []string{"OBJECT", "NAME", "READY", "CONCERNS"}

	var fieldList [][]string
	for _, e := range list {
		fieldList = append(fieldList, []string{
			e.Object.String(), e.Name, strconv.FormatBool(e.Ready), describe(e.Concerns),
		})
	}

	max := make([]int, len(columnList))
	for i, s := range columnList {
		max[i] = len(s)
	}
	for _, cols := range fieldList {
		for i, s := range cols {
			if max[i] < len(s) {
				max[i] = len(s)
			}
		}
	}

	f := formatString(max)
	printLine(w, columnList, f)
	for _, cols := range fieldList {
		printLine(w, cols, f)
	}
}

func describe(records []concern.Record) string {
	return strings.Join(sliceutils.Transform(records, func(r concern.Record) string {
		return fmt.Sprintf("%s:%s@%s", r.Type, r.Name, r.Owner)
	}), ",")
}

func printLine(w io.Writer, cols []string, msg string) {
	fmt.Fprintf(w, "%s\n", strings.TrimRight(fmt.Sprintf(msg, sliceutils.Convert[any](cols)...), " "))
}

func formatString(max []int) string {
	msg := ""
	for _, l := range max {
		msg += fmt.Sprintf("%%-%ds ", l)
	}
	return msg[:len(msg)-1]
}
