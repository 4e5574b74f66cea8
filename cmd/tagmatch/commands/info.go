package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// infoView is the artifact health summary.
type infoView struct {
	Store         string    `json:"store" yaml:"store"`
	BuildID       string    `json:"build_id" yaml:"build_id"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	Sources       []string  `json:"sources" yaml:"sources"`
	Entries       int       `json:"entries" yaml:"entries"`
	Aliases       int       `json:"aliases" yaml:"aliases"`
	Vectors       int       `json:"vectors" yaml:"vectors"`
	MaxPopularity int64     `json:"max_popularity" yaml:"max_popularity"`
	Model         string    `json:"model,omitempty" yaml:"model,omitempty"`
	Dimension     int       `json:"dimension,omitempty" yaml:"dimension,omitempty"`
	Index         string    `json:"index,omitempty" yaml:"index,omitempty"`
	VectorStage   bool      `json:"vector_stage" yaml:"vector_stage"`
}

func (infoView) Header() []string { return []string{"KEY", "VALUE"} }

func (v infoView) Rows() [][]string {
	return [][]string{
		{"store", v.Store},
		{"build id", v.BuildID},
		{"created", v.CreatedAt.Format(time.RFC3339)},
		{"entries", strconv.Itoa(v.Entries)},
		{"aliases", strconv.Itoa(v.Aliases)},
		{"vectors", strconv.Itoa(v.Vectors)},
		{"model", v.Model},
		{"index", v.Index},
		{"vector stage", strconv.FormatBool(v.VectorStage)},
	}
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the artifact contains",
	Long: `Load the artifact and print its counts, embedding model, build ID and
whether the vector stage is available with the configured embedder.

A corrupt artifact fails here the same way it fails before matching.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context(), globalConfig)
		if err != nil {
			return err
		}
		defer sess.close()

		b := sess.bundle
		m := b.Manifest
		v := infoView{
			BuildID:       m.BuildID,
			CreatedAt:     m.CreatedAt,
			Sources:       m.Sources,
			Entries:       b.Catalog.Len(),
			Aliases:       b.Catalog.Aliases().Len(),
			MaxPopularity: b.Catalog.MaxPopularity(),
			VectorStage:   sess.vector,
		}
		if store, err := openStore(globalConfig); err == nil {
			v.Store = store.String()
		}
		if b.HasVectors() {
			v.Vectors = b.Vectors.Len()
		}
		if e := m.Embedding; e != nil {
			v.Model, v.Dimension, v.Index = e.Model, e.Dimension, string(e.Index)
		}
		if v.Vectors > 0 && !v.VectorStage {
			logger.Warn("artifact has vectors but the vector stage is off", "vectors", v.Vectors)
		}
		return output(cmd, v)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
