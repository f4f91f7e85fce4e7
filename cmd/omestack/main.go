package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/omestack/omestack"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if omestack.IsCancelled(err) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "omestack",
		Short:         "inspect and rewrite TIFF microscopy stacks as OME-TIFF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInfoCmd(), newRewriteCmd(), newExportMetaCmd())
	return root
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info file.tif",
		Short: "print the dimensional layout and metadata of a stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := omestack.Open(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			out := cmd.OutOrStdout()
			kind := "TIFF"
			if img.IsOME() {
				kind = "OME-TIFF"
			}
			fmt.Fprintf(out, "%s (%s, %d bytes)\n", img.Path(), kind, img.FileSize())
			fmt.Fprintf(out, "series:     %d\n", img.SeriesCount())
			fmt.Fprintf(out, "dimensions: %dx%d, %d planes (Z=%d C=%d T=%d)\n",
				img.SizeX(), img.SizeY(), img.ImageCount(), img.SizeZ(), img.SizeC(), img.SizeT())
			fmt.Fprintf(out, "pixel type: %s\n", img.PixelType())

			meta, warnings := omestack.ExtractMetadata(img)
			for _, ch := range meta.Channels {
				fmt.Fprintf(out, "channel:    %s (%s, %d photon)\n",
					ch.Name, ch.AcquisitionMode, ch.PhotonCount)
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
}

// rewriteConfig is the YAML shape accepted by `rewrite --config`. Flags given
// on the command line win over the file.
type rewriteConfig struct {
	Channels     int    `yaml:"channels"`
	Compression  string `yaml:"compression"`
	Level        int    `yaml:"level"`
	MetadataPath string `yaml:"metadata"`
}

func newRewriteCmd() *cobra.Command {
	var (
		output     string
		configPath string
		cfg        = rewriteConfig{Compression: "AdobeDeflate", Level: -1000}
	)
	cmd := &cobra.Command{
		Use:   "rewrite file.tif",
		Short: "rewrite a stack as a metadata-complete OME-TIFF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := loadConfig(configPath, &cfg, cmd); err != nil {
					return err
				}
			}
			img, err := omestack.Open(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			if cfg.Channels > 1 {
				if err := img.SetInterleavedChannelCount(cfg.Channels); err != nil {
					return err
				}
			}
			meta, warnings := omestack.ExtractMetadata(img)
			if cfg.MetadataPath != "" {
				edit, err := omestack.LoadMetadataJSON(cfg.MetadataPath)
				if err != nil {
					return err
				}
				meta = meta.Apply(edit)
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			opts := []omestack.SaveOption{omestack.WithCompression(cfg.Compression)}
			if cfg.Level != -1000 {
				opts = append(opts, omestack.WithCompressionLevel(cfg.Level))
			}
			if err := omestack.SaveWithMetadata(img, meta, output, opts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.ome.tif", "destination file")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with rewrite defaults")
	cmd.Flags().IntVar(&cfg.Channels, "interleaved-channels", 0, "reinterpret planes as N interleaved channels")
	cmd.Flags().StringVar(&cfg.Compression, "compression", cfg.Compression, "output codec (AdobeDeflate, Deflate, None)")
	cmd.Flags().IntVar(&cfg.Level, "level", cfg.Level, "deflate level")
	cmd.Flags().StringVar(&cfg.MetadataPath, "meta", "", "JSON sidecar overriding extracted metadata")
	return cmd
}

// loadConfig fills cfg from a YAML file, keeping values already set by flags.
func loadConfig(path string, cfg *rewriteConfig, cmd *cobra.Command) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fileCfg rewriteConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if !cmd.Flags().Changed("interleaved-channels") && fileCfg.Channels != 0 {
		cfg.Channels = fileCfg.Channels
	}
	if !cmd.Flags().Changed("compression") && fileCfg.Compression != "" {
		cfg.Compression = fileCfg.Compression
	}
	if !cmd.Flags().Changed("level") && fileCfg.Level != 0 {
		cfg.Level = fileCfg.Level
	}
	if !cmd.Flags().Changed("meta") && fileCfg.MetadataPath != "" {
		cfg.MetadataPath = fileCfg.MetadataPath
	}
	return nil
}

func newExportMetaCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-meta file.ome.tif",
		Short: "export the metadata subset as a JSON sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := omestack.Open(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			meta, warnings := omestack.ExtractMetadata(img)
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			if err := omestack.SaveMetadataJSON(meta, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "meta.json", "destination file")
	return cmd
}
