package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ed25519"
	"gopkg.in/urfave/cli.v1"

	"github.com/hashweave-network/hashweave"
	"github.com/hashweave-network/hashweave/api"
	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
	"github.com/hashweave-network/hashweave/store"
)

func main() {
	app := cli.NewApp()

	app.Name = "hashweave"
	app.Usage = "a stake-weighted, leaderless, asynchronous BFT event mesh"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Load configuration from `CONFIG_FILE`.",
		},
		cli.Uint64Flag{
			Name:  "node.id",
			Usage: "This node's `ID` in the address book.",
		},
		cli.StringFlag{
			Name:  "database, db",
			Usage: "Persist admitted events to a LevelDB store at `DB_PATH`.",
		},
		cli.StringFlag{
			Name:  "api",
			Usage: "Host the status API at `API_ADDR`.",
		},
		cli.Int64SliceFlag{
			Name:  "stakes",
			Usage: "Stake of every node, in node-id order, as `STAKES`.",
		},
	}

	app.Action = func(c *cli.Context) error {
		config := loadConfig(c)

		selfID := common.NodeID(c.Uint64("node.id"))

		stakes := c.Int64Slice("stakes")
		if len(stakes) == 0 {
			stakes = []int64{1}
		}

		addresses := make([]hashweave.Address, len(stakes))
		engines := make([]*hashweave.Ed25519Engine, len(stakes))

		for i, stake := range stakes {
			_, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}

			engine := hashweave.NewEd25519Engine(priv)
			engines[i] = engine
			addresses[i] = hashweave.Address{
				ID:        common.NodeID(i),
				Stake:     uint64(stake),
				PublicKey: engine.PublicKey(),
			}
		}

		if int(selfID) >= len(addresses) {
			return cli.NewExitError(fmt.Sprintf("node id %d is not in the address book", selfID), 1)
		}

		kv := openStore(c)
		defer kv.Close()

		node, err := hashweave.NewNode(
			config,
			selfID,
			hashweave.NewAddressBook(addresses),
			newDevConsensus(),
			engines[selfID],
			emptySupplier{},
			emptyPool{},
			neverFrozen{},
			discardRecorder{},
			kv,
		)
		if err != nil {
			return err
		}

		if err := node.Replay(); err != nil {
			return err
		}

		if addr := c.String("api"); addr != "" {
			go func() {
				if err := api.Run(node, api.Options{ListenAddr: addr}); err != nil {
					log.Fatal().Err(err).Msg("Status API failed.")
				}
			}()
		}

		go node.RunCreationLoop()

		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt)

		go func() {
			<-exit
			node.Stop()
			os.Exit(0)
		}()

		logger := log.Node()
		logger.Info().
			Uint64("id", uint64(selfID)).
			Int("peers", len(addresses)).
			Msg("Node is running.")

		return node.Run()
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse configuration/command-line arguments.")
	}
}

func loadConfig(c *cli.Context) hashweave.Config {
	config := hashweave.DefaultConfig()

	if path := c.String("config"); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetEnvPrefix("hashweave")
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read configuration file.")
		}

		if v.IsSet("max_transaction_bytes_per_event") {
			config.MaxTransactionBytesPerEvent = v.GetInt("max_transaction_bytes_per_event")
		}
		if v.IsSet("verify_event_signatures") {
			config.VerifyEventSignatures = v.GetBool("verify_event_signatures")
		}
		if v.IsSet("enable_mirror_node_mode") {
			config.EnableMirrorNodeMode = v.GetBool("enable_mirror_node_mode")
		}
		if v.IsSet("rescue_childless_inverse_probability") {
			config.RescueChildlessInverseProbability = v.GetInt("rescue_childless_inverse_probability")
		}
		if v.IsSet("intake_queue_size") {
			config.IntakeQueueSize = v.GetInt("intake_queue_size")
		}
		if v.IsSet("events_per_second") {
			config.EventsPerSecond = v.GetFloat64("events_per_second")
		}
	}

	return config
}

func openStore(c *cli.Context) store.KV {
	path := c.String("database")
	if path == "" {
		return store.NewInmem()
	}

	kv, err := store.NewLevelDB(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to open the event store.")
	}

	return kv
}

type emptySupplier struct{}

func (emptySupplier) Drain() []hashweave.Transaction { return nil }

type emptyPool struct{}

func (emptyPool) NumUserTransForEvent() int { return 0 }
func (emptyPool) NumFreezeTransEvent() int  { return 0 }

type neverFrozen struct{}

func (neverFrozen) IsEventCreationFrozen() bool { return false }

type discardRecorder struct{}

func (discardRecorder) RecordStateSig(round int64, member common.NodeID, stateHash []byte, sig []byte) error {
	return nil
}
