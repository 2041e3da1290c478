package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hashrand/beacon/beacon"
	"github.com/hashrand/beacon/common"
	"github.com/hashrand/beacon/netio"
	"github.com/hashrand/beacon/replica"
	"github.com/hashrand/beacon/wire"
)

var (
	configPath  string
	logLevel    string
	controlAddr string
)

var rootCmd = &cobra.Command{
	Use:   "beacon-node",
	Short: "Run one replica of an asynchronous random-beacon instance",
	Long: `beacon-node runs a single replica of the BAwVSS/Gather/BBAA
random-beacon protocol, dialing its peers over TCP according to a YAML
configuration file and serving coin requests on a local control port.`,
	RunE: runNode,
}

var requestCmd = &cobra.Command{
	Use:   "request <id>",
	Short: "Submit a coin request to a running beacon-node and print its value",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequest,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the replica's YAML configuration (required)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log verbosity: debug, info, warn, error")
	rootCmd.MarkPersistentFlagRequired("config")

	requestCmd.Flags().StringVar(&controlAddr, "control-addr", "", "control address of a running beacon-node (overrides the config file's control_addr)")

	rootCmd.AddCommand(requestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "beacon-node: %v\n", err)
		os.Exit(1)
	}
}

func loadParams() (*replica.Parameters, error) {
	if err := common.SetLogLevel(logLevel); err != nil {
		return nil, err
	}
	return replica.LoadParameters(configPath)
}

func runNode(cmd *cobra.Command, args []string) error {
	params, err := loadParams()
	if err != nil {
		return err
	}

	output := make(chan beacon.BeaconOutput, 64)

	var ctx *beacon.Context
	mesh := netio.NewMesh(params, func(env *wire.Envelope) error { return ctx.ProcessEnvelope(env) })
	ctx = beacon.NewContext(params, mesh, output)

	if err := mesh.Listen(); err != nil {
		return err
	}
	defer mesh.Close()

	if params.ControlAddr != "" {
		control, err := netio.NewControlServer(params.ControlAddr, ctx, output)
		if err != nil {
			return err
		}
		defer control.Close()
		common.Logger.Infof("beacon-node: %s listening for peers, control on %s", params.MyID, params.ControlAddr)
	} else {
		common.Logger.Infof("beacon-node: %s listening for peers, no control port configured", params.MyID)
		go func() {
			for range output {
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	if controlAddr == "" {
		params, err := replica.LoadParameters(configPath)
		if err != nil {
			return err
		}
		controlAddr = params.ControlAddr
	}
	if controlAddr == "" {
		return fmt.Errorf("beacon-node: no control address given (pass --control-addr or set control_addr in the config)")
	}

	var id uint32
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("beacon-node: %q is not a valid request id: %w", args[0], err)
	}

	value, err := netio.RequestCoin(controlAddr, id)
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", value)
	return nil
}
