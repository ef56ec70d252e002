// Command genmodels creates, inspects and exercises generative models
// stored in .gm files.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/chadHGY/GenerativeModels/backend/cpu"
	"github.com/chadHGY/GenerativeModels/config"
	"github.com/chadHGY/GenerativeModels/internal/serialization"
	"github.com/chadHGY/GenerativeModels/nets"
	"github.com/chadHGY/GenerativeModels/tensor"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "genmodels",
		Short:         "Generative model toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInitCmd(), newInfoCmd(), newEncodeCmd(), newReconstructCmd())
	return root
}

func newInitCmd() *cobra.Command {
	var configPath string
	var compress bool

	cmd := &cobra.Command{
		Use:   "init <model.gm>",
		Short: "Create a freshly initialized model from a configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			}
			if cfg.Seed != 0 {
				tensor.Seed(cfg.Seed)
			}

			net, err := nets.NewVQVAE(cfg.Model, cfg.Backend())
			if err != nil {
				return err
			}
			if err := net.Save(args[0], compress); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d parameters)\n", args[0], countParameters(net))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults when omitted)")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip the tensor data section")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.gm>",
		Short: "Show the contents of a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			model, err := serialization.LoadStateDict(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("model type:      %s\n", model.Header.ModelType)
			fmt.Printf("library version: %s\n", model.Header.LibraryVersion)
			fmt.Printf("created at:      %s\n", model.Header.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Printf("tensors:         %d\n", len(model.Header.Tensors))

			metas := append([]serialization.TensorMeta(nil), model.Header.Tensors...)
			sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })

			var totalBytes int64
			for _, meta := range metas {
				fmt.Printf("  %-40s %-8s %v\n", meta.Name, meta.DType, meta.Shape)
				totalBytes += meta.Size
			}
			fmt.Printf("data size:       %d bytes\n", totalBytes)
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	var batch, spatial int

	cmd := &cobra.Command{
		Use:   "encode <model.gm>",
		Short: "Map random data to discrete codebook indices",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			backend := cpu.New()
			net, err := nets.LoadVQVAE(args[0], backend)
			if err != nil {
				return err
			}
			net.Eval()

			cfg := net.Config()
			shape := tensor.Shape{batch, cfg.InChannels}
			for i := 0; i < cfg.SpatialDims; i++ {
				shape = append(shape, spatial)
			}

			input := tensor.Randn[float32](shape, backend)
			latent := net.Encode(input)
			indices := net.IndexQuantize(input)

			fmt.Printf("input shape:   %v\n", input.Shape())
			fmt.Printf("latent shape:  %v\n", latent.Shape())
			fmt.Printf("indices shape: %v (values in [0, %d))\n", indices.Shape(), cfg.NumEmbeddings)
			return nil
		},
	}
	cmd.Flags().IntVarP(&batch, "batch", "b", 1, "batch size of the random input")
	cmd.Flags().IntVarP(&spatial, "size", "s", 64, "spatial size of the random input")
	return cmd
}

func newReconstructCmd() *cobra.Command {
	var batch, spatial int

	cmd := &cobra.Command{
		Use:   "reconstruct <model.gm>",
		Short: "Run a forward pass on random data and report the quantization loss",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			backend := cpu.New()
			net, err := nets.LoadVQVAE(args[0], backend)
			if err != nil {
				return err
			}
			net.Eval()

			cfg := net.Config()
			shape := tensor.Shape{batch, cfg.InChannels}
			for i := 0; i < cfg.SpatialDims; i++ {
				shape = append(shape, spatial)
			}

			input := tensor.Randn[float32](shape, backend)
			reconstruction, loss := net.Forward(input)

			fmt.Printf("input shape:          %v\n", input.Shape())
			fmt.Printf("reconstruction shape: %v\n", reconstruction.Shape())
			fmt.Printf("quantization loss:    %g\n", loss.Data()[0])
			return nil
		},
	}
	cmd.Flags().IntVarP(&batch, "batch", "b", 1, "batch size of the random input")
	cmd.Flags().IntVarP(&spatial, "size", "s", 64, "spatial size of the random input")
	return cmd
}

func countParameters[B tensor.Backend](net *nets.VQVAE[B]) int {
	total := 0
	for _, p := range net.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}
