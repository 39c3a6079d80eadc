// Command docstore-cli is a minimal front-end over store.ResourceStore,
// anchoring expected end-to-end behavior: import a file, list resources,
// stream a variant back out, and run a text search.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fabricedesre/docstore/resource"
	"github.com/fabricedesre/docstore/store"
)

const defaultDataDir = "./docstore-data"

func main() {
	app := &cli.App{
		Name:  "docstore-cli",
		Usage: "inspect and populate an encrypted docstore resource store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Value:   defaultDataDir,
				Usage:   "root directory of the resource store",
				EnvVars: []string{"DOCSTORE_DATA_DIR"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "import a local file as a new resource",
				ArgsUsage: "<localPath>",
				Action:    putAction,
			},
			{
				Name:   "ls",
				Usage:  "list resources under /.resources",
				Action: lsAction,
			},
			{
				Name:      "get",
				Usage:     "stream a resource's default variant to stdout",
				ArgsUsage: "<name>",
				Action:    getAction,
			},
			{
				Name:      "search",
				Usage:     "search descriptions and extracted text",
				ArgsUsage: "<text>",
				Action:    searchAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (*store.ResourceStore, error) {
	return store.New(c.Context, c.String("data-dir"), store.DefaultOptions())
}

func putAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: docstore-cli put <localPath>", 1)
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	localPath := c.Args().First()
	if err := s.ImportFile(context.Background(), localPath); err != nil {
		return err
	}
	fmt.Printf("imported %s\n", localPath)
	return nil
}

func lsAction(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.Ls(context.Background(), nil)
	if err != nil {
		return err
	}
	for _, e := range entries {
		def := e.Metadata.Variants[resource.DefaultVariant]
		fmt.Printf("%s — %d — %v\n", e.Id, def.Size, variantNames(e.Metadata))
	}
	return nil
}

func getAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: docstore-cli get <name>", 1)
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := resource.ParseId(c.Args().First())
	if err != nil {
		return err
	}
	r, err := s.GetVariant(context.Background(), id, resource.DefaultVariant)
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, r)
	return err
}

func searchAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: docstore-cli search <text>", 1)
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.Search(context.Background(), c.Args().First())
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s — %s\n", e.Id, e.Metadata.Desc)
	}
	return nil
}

func variantNames(meta *resource.Metadata) []string {
	names := make([]string, 0, len(meta.Variants))
	for name := range meta.Variants {
		names = append(names, name)
	}
	return names
}
