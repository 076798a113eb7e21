package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dargueta/mapfs/fusefs"
	"github.com/dargueta/mapfs/mfs"
	"github.com/dargueta/mapfs/profiles"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Usage: "Mount and manage memory-mapped disk images",
		Commands: []*cli.Command{
			{
				Name:      "mount",
				Usage:     "Mount an image through FUSE, creating it on first use",
				Action:    mountImage,
				ArgsUsage: "IMAGE  MOUNTPOINT",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "log every FUSE request",
					},
				},
			},
			{
				Name:      "format",
				Usage:     "Create or wipe an image",
				Action:    formatImage,
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "profile",
						Usage: "image geometry profile",
						Value: "mfs-1m",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing image",
					},
				},
			},
			{
				Name:      "fsck",
				Usage:     "Check an image for structural damage",
				Action:    checkImage,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "ls",
				Usage:     "List a directory inside an image without mounting it",
				Action:    listDirectory,
				ArgsUsage: "IMAGE  [PATH]",
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mountImage(context *cli.Context) error {
	if context.NArg() != 2 {
		return cli.Exit("usage: mapfs mount IMAGE MOUNTPOINT", 2)
	}

	drv, err := mfs.Mount(context.Args().Get(0))
	if err != nil {
		return err
	}

	server, err := fusefs.Mount(drv, context.Args().Get(1), context.Bool("debug"))
	if err != nil {
		drv.Unmount()
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		server.Unmount()
	}()

	server.Serve()
	return drv.Unmount()
}

func formatImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return cli.Exit("usage: mapfs format IMAGE", 2)
	}
	path := context.Args().Get(0)

	profile, err := profiles.Get(context.String("profile"))
	if err != nil {
		return err
	}
	if profile.ImageSize != mfs.ImageSize {
		return fmt.Errorf(
			"profile %q describes a %d-byte image; this build only writes"+
				" %d-byte images",
			profile.Slug,
			profile.ImageSize,
			mfs.ImageSize)
	}

	_, err = os.Stat(path)
	if err == nil && !context.Bool("force") {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	return mfs.FormatFile(path)
}

func checkImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return cli.Exit("usage: mapfs fsck IMAGE", 2)
	}

	drv, err := mfs.Mount(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer drv.Unmount()

	err = drv.Check()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Println("image is clean")
	return nil
}

func listDirectory(context *cli.Context) error {
	if context.NArg() < 1 || context.NArg() > 2 {
		return cli.Exit("usage: mapfs ls IMAGE [PATH]", 2)
	}

	path := "/"
	if context.NArg() == 2 {
		path = context.Args().Get(1)
	}

	drv, err := mfs.Mount(context.Args().Get(0))
	if err != nil {
		return err
	}
	defer drv.Unmount()

	entries, err := drv.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fmt.Printf(
			"%7d  %06o  %10d  %s\n",
			entry.Stat.InodeNumber,
			entry.Stat.ModeFlags,
			entry.Stat.Size,
			entry.Name)
	}
	return nil
}
