package load

import (
	"fmt"
	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/ValentinKolb/recstore/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
)

var (
	LoadCmd = &cobra.Command{
		Use:   "load <dataset>",
		Short: "Load a dataset into a store and print the active view",
		Long: `Load a dataset (json, yaml or gob) into a store built from a store definition file,
apply the filters of the definition and the --where expression and write the active view.
Flags can be set via environment variables of the format RECSTORE_<flag> (e.g. RECSTORE_DEFINITION=store.yaml)`,
		Args:    cobra.ExactArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "definition"
	LoadCmd.Flags().String(key, "", util.WrapString("Path to the store definition (yaml)"))
	key = "where"
	LoadCmd.Flags().String(key, "", util.WrapString("Additional CEL filter over the record (e.g. 'record.age >= 18')"))
	key = "output"
	LoadCmd.Flags().String(key, "-", util.WrapString("Output file, the codec is chosen by the file extension unless --codec is set (- for stdout)"))
	key = "fields"
	LoadCmd.Flags().String(key, "", util.WrapString("Comma-separated list of fields to include in the output"))
	key = "hidden"
	LoadCmd.Flags().Bool(key, false, util.WrapString("Include hidden fields in the output"))
	key = "info"
	LoadCmd.Flags().Bool(key, false, util.WrapString("Print the store info to stderr"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if viper.GetString("definition") == "" {
		return fmt.Errorf("a store definition is required (--definition)")
	}
	return nil
}

func run(_ *cobra.Command, args []string) error {
	def, err := store.LoadDefinition(viper.GetString("definition"))
	if err != nil {
		return err
	}
	s, err := def.Build(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ds, err := util.ReadDataset(args[0])
	if err != nil {
		return err
	}
	if err := s.Load(ds); err != nil {
		return err
	}
	if where := viper.GetString("where"); where != "" {
		if err := s.AddFilterExpr("where", where); err != nil {
			return err
		}
	}

	opts := model.DataOptions{Hidden: viper.GetBool("hidden")}
	if fields := viper.GetString("fields"); fields != "" {
		opts.Include = strings.Split(fields, ",")
		opts.Strict = true
	}
	if err := util.WriteDataset(viper.GetString("output"), s.Data(opts)); err != nil {
		return err
	}

	if viper.GetBool("info") {
		info := s.Info()
		fmt.Fprintf(os.Stderr, "store %s (schema %s): %d of %d records active, filters %v\n",
			info.Name, info.Schema, info.Size, info.Length, info.Filters)
		for _, idx := range info.Indexes {
			fmt.Fprintf(os.Stderr, "  index %s (btree %v): %d values, %d ids, distribution quality %.2f\n",
				idx.Field, idx.BTree, idx.Values, idx.IDs, idx.Buckets.Quality)
		}
	}
	return nil
}
