package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagelink-dev/pagelink"
	"github.com/pagelink-dev/pagelink/internal/config"
	"github.com/pagelink-dev/pagelink/pkg/control"
)

func pageCmd() *cobra.Command {
	var (
		watch bool
		clean bool
	)

	cmd := &cobra.Command{
		Use:   "page <name> [text ...]",
		Short: "Open a page and add text to it",
		Long: `Open (or create) a shared page on the host and append one text
control per argument. With --watch the command keeps running and prints
every user event the host pushes, until interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts, err := sessionOptions()
			if err != nil {
				return err
			}
			session, err := pagelink.OpenPage(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			defer session.Close()

			if clean {
				if err := session.Clean(ctx); err != nil {
					return err
				}
			}
			for _, text := range args[1:] {
				txt := control.New("text")
				txt.SetAttr("value", text)
				if err := session.Add(ctx, txt); err != nil {
					return err
				}
			}

			if !watch {
				return nil
			}
			for {
				e, err := session.WaitEvent(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				fmt.Printf("%s %s %s\n", e.Target, e.Name, e.Data)
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "print page events until interrupted")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove existing page content first")
	return cmd
}

// sessionOptions merges the config file with command-line overrides.
func sessionOptions() ([]pagelink.Option, error) {
	path := flagConfig
	explicit := path != ""
	if !explicit {
		path = "pagelink.yml"
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.Server = flagServer
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}

	opts := []pagelink.Option{
		pagelink.WithServer(cfg.Server),
		pagelink.WithUpdate(true),
	}
	if cfg.Token != "" {
		opts = append(opts, pagelink.WithToken(cfg.Token))
	}
	if cfg.Permissions != "" {
		opts = append(opts, pagelink.WithPermissions(cfg.Permissions))
	}
	return opts, nil
}
