// Command vaultctl is the client CLI: it connects to a running vaultd,
// issues a backup or restore request, and streams back the per-file
// progress frames vaultd reports as the job runs.
//
// This is a thin, intentionally minimal entrypoint (SPEC_FULL.md §7) built
// on the urfave/cli command framework, the same library the teacher's own
// cmd/cli tool uses for its subcommand surface.
package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli"

	"github.com/quietloop/vaultpipe/internal/coreerr"
	"github.com/quietloop/vaultpipe/stage"
	"github.com/quietloop/vaultpipe/tlv"
)

var requestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// requestTag must match vaultd's requestTag: the data tag the request
// payload travels on within the start/.../end message framing every tlv
// exchange.
const requestTag uint16 = 1

type request struct {
	Op   string `json:"op"`
	Root string `json:"root"`
}

func main() {
	app := cli.NewApp()
	app.Name = "vaultctl"
	app.Usage = "drive a vaultd backend over its TLV control socket"

	socketFlag := cli.StringFlag{
		Name:  "socket",
		Value: "/var/run/vaultpipe.sock",
		Usage: "unix socket vaultd is listening on",
	}

	app.Commands = []cli.Command{
		{
			Name:      "backup",
			Usage:     "back up every file under root",
			ArgsUsage: "ROOT",
			Flags:     []cli.Flag{socketFlag},
			Action: func(c *cli.Context) error {
				return runJob(c.String("socket"), "backup", c.Args().First())
			},
		},
		{
			Name:      "restore",
			Usage:     "restore every archive under root",
			ArgsUsage: "ROOT",
			Flags:     []cli.Flag{socketFlag},
			Action: func(c *cli.Context) error {
				return runJob(c.String("socket"), "restore", c.Args().First())
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl:", err)
		os.Exit(1)
	}
}

// runJob opens a fresh connection to socketPath, sends a start frame, a
// request frame naming op and root, and an end frame, then prints every
// check frame vaultd reports until it sends an end frame or the connection
// closes; an error frame ends the job with a non-zero exit.
func runJob(socketPath, op, root string) error {
	if root == "" {
		return cli.NewExitError("a root directory is required", 1)
	}

	conn := stage.NewUnixSocket(socketPath, false)
	if err := conn.Open(); err != nil {
		return cli.NewExitError(fmt.Sprintf("connecting to %s: %v", socketPath, err), 1)
	}
	defer conn.Close()

	sender := tlv.NewSender(conn)
	receiver := tlv.NewReceiver(conn)

	buf, err := requestJSON.Marshal(request{Op: op, Root: root})
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("encoding request: %v", err), 1)
	}
	if err := sender.Start(); err != nil {
		return cli.NewExitError(fmt.Sprintf("sending start frame: %v", err), 1)
	}
	if err := sender.Write(requestTag, buf); err != nil {
		return cli.NewExitError(fmt.Sprintf("sending request frame: %v", err), 1)
	}
	if err := sender.End(); err != nil {
		return cli.NewExitError(fmt.Sprintf("ending request message: %v", err), 1)
	}

	ack, err := receiver.Receive()
	if err != nil || ack.Type != tlv.StartType {
		return cli.NewExitError(fmt.Sprintf("vaultd did not acknowledge the request: %v %v", ack, err), 1)
	}

	for {
		rec, err := receiver.Receive()
		if err != nil {
			if coreerr.Is(err, coreerr.Flushed) {
				return nil
			}
			return cli.NewExitError(fmt.Sprintf("receiving frame: %v", err), 1)
		}
		switch rec.Type {
		case tlv.CheckType:
			fmt.Println(string(rec.Value))
		case tlv.ErrorType:
			return cli.NewExitError(fmt.Sprintf("vaultd reported error %d", rec.ErrNo), 1)
		case tlv.EndType:
			return nil
		}
	}
}
