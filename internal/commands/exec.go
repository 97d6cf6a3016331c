package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tgops/internal/batch"
)

func execCmd() *cobra.Command {
	var (
		params  []string
		asJSON  bool
		timeout int
	)
	cmd := &cobra.Command{
		Use:   "exec <operation>",
		Short: "Run one operation, e.g. exec sendMessage --param chatId=@me --param messageText=hi",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bag, err := parseParams(params)
			if err != nil {
				return err
			}
			if timeout > 0 {
				bag["timeout"] = timeout
			}
			exec, err := env.executor()
			if err != nil {
				return err
			}
			results, err := exec.Execute(cmd.Context(), []batch.Request{{Operation: args[0], Params: bag}}, env.batchOptions(true))
			if err != nil {
				return err
			}
			res := results[0]
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				writeResult(cmd.OutOrStdout(), res)
			}
			if !res.Success {
				return errors.Errorf("%s failed", res.Operation)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "operation parameter as key=value; [..] and {..} values are parsed as JSON")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "per-operation timeout in seconds")
	return cmd
}

func runCmd() *cobra.Command {
	var continueOnFail bool
	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run a batch of operations from a JSON or YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			file, err := loadBatch(src)
			if err != nil {
				return err
			}
			exec, err := env.executor()
			if err != nil {
				return err
			}
			results, err := exec.Execute(cmd.Context(), file.Items, env.batchOptions(continueOnFail || file.ContinueOnFail))
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			for _, r := range results {
				if !r.Success {
					return errors.New("some items failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&continueOnFail, "continue-on-fail", false, "record failed items and keep going")
	return cmd
}

func operationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the supported operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, op := range batch.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", op.Name, op.Description)
			}
			return nil
		},
	}
}

// batchFile is the document accepted by run: either a bare list of
// requests or an object with items and options.
type batchFile struct {
	Items          []batch.Request `json:"items" yaml:"items"`
	ContinueOnFail bool            `json:"continueOnFail" yaml:"continueOnFail"`
}

// loadBatch decodes a JSON or YAML batch document.
func loadBatch(r io.Reader) (batchFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return batchFile{}, err
	}
	var file batchFile
	switch trimmed := bytes.TrimSpace(raw); {
	case len(trimmed) == 0:
		return batchFile{}, errors.New("batch is empty")
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &file.Items)
	case trimmed[0] == '{':
		err = json.Unmarshal(trimmed, &file)
	default:
		err = decodeYAMLBatch(trimmed, &file)
	}
	if err != nil {
		return batchFile{}, errors.Wrap(err, "parse batch")
	}
	if len(file.Items) == 0 {
		return batchFile{}, errors.New("batch has no items")
	}
	for i, item := range file.Items {
		if strings.TrimSpace(item.Operation) == "" {
			return batchFile{}, errors.Errorf("item %d has no operation", i)
		}
	}
	return file, nil
}

func decodeYAMLBatch(raw []byte, file *batchFile) error {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 {
		return errors.New("batch is empty")
	}
	switch doc := node.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		return doc.Decode(&file.Items)
	case yaml.MappingNode:
		return doc.Decode(file)
	default:
		return errors.New("batch must be a list of operations or an object with items")
	}
}

// parseParams turns key=value flags into a parameter bag. Only list and
// object values are parsed as JSON; scalars stay strings and are converted
// by the operation's parameter decoder.
func parseParams(pairs []string) (map[string]any, error) {
	bag := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Errorf("parameter %q is not key=value", pair)
		}
		if trimmed := strings.TrimSpace(value); strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				bag[key] = decoded
				continue
			}
		}
		bag[key] = value
	}
	return bag, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, res batch.Result) {
	if res.Error != nil {
		fmt.Fprintf(w, "%s failed: %s: %s\n", res.Operation, res.Error.Kind, res.Error.Message)
		return
	}
	keys := make([]string, 0, len(res.Data))
	for k := range res.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := res.Data[k].(type) {
		case string, int, int64, bool:
			fmt.Fprintf(w, "%s: %v\n", k, v)
		default:
			encoded, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				fmt.Fprintf(w, "%s: %v\n", k, v)
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", k, encoded)
		}
	}
}
