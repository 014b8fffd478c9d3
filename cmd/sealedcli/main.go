// Copyright (C) 2025, Lux Industries, Inc.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/WilliamSmith5172078/sealed/acl"
	"github.com/WilliamSmith5172078/sealed/decrypt"
	"github.com/WilliamSmith5172078/sealed/engine"
	"github.com/WilliamSmith5172078/sealed/events"
	"github.com/WilliamSmith5172078/sealed/filestore"
	"github.com/WilliamSmith5172078/sealed/game"
	"github.com/WilliamSmith5172078/sealed/oracle"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sealedcli",
	Short: "Sealed - encrypted state machine demo CLI",
	Long: `Sealed manages ledger entries whose sensitive fields are ciphertext
handles: an encrypted wagering game and an encrypted file registry.

This CLI runs both against an in-process mock engine and a local
decryption oracle, printing every state transition and emitted event.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(filesCmd)
}

// world is the in-process wiring the demo commands run against.
type world struct {
	engine *engine.MockEngine
	list   *acl.List
	feed   *events.Feed
	coord  *decrypt.Coordinator
	oracle *oracle.LocalOracle
	sub    <-chan events.Event
}

func newWorld() *world {
	logger := log.NoLog{}
	eng := engine.NewMockEngine()
	feed := events.NewFeed(logger, 256)
	list := acl.New(&events.AccessObserver{Emitter: feed})

	oracleAddr := common.HexToAddress("0x0100000000000000000000000000000000000042")
	coord := decrypt.New(decrypt.DefaultConfig(oracleAddr), list, feed, logger)
	oracleInst := oracle.NewLocalOracle(oracleAddr, eng, coord, logger)

	return &world{
		engine: eng,
		list:   list,
		feed:   feed,
		coord:  coord,
		oracle: oracleInst,
		sub:    feed.Subscribe(256),
	}
}

// pump drains buffered events, answering decryption requests through
// the local oracle, until the feed goes quiet.
func (w *world) pump() {
	for {
		select {
		case e := <-w.sub:
			if e.Type != events.DecryptionRequested {
				continue
			}
			if err := w.oracle.FulfillRequest(e.RequestID); err != nil {
				fmt.Fprintf(os.Stderr, "oracle: %v\n", err)
			}
		default:
			return
		}
	}
}

func (w *world) printRecent(n int) {
	recent := w.feed.Recent()
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	fmt.Println("Events:")
	for _, e := range recent {
		fmt.Printf("  %-24s entry=%d principal=%s\n", e.Type, e.EntryID, e.Principal)
	}
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play one encrypted game round",
	Long: `Create a game, join it with a second player, resolve it through the
oracle, and claim the prize. Both choices stay encrypted on the ledger;
only the outcome index is ever revealed.`,
	Run: func(cmd *cobra.Command, args []string) {
		choice1Str, _ := cmd.Flags().GetString("choice1")
		choice2Str, _ := cmd.Flags().GetString("choice2")
		stakeStr, _ := cmd.Flags().GetString("stake")

		choice1, err := parseChoice(choice1Str)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid choice1: %v\n", err)
			os.Exit(1)
		}
		choice2, err := parseChoice(choice2Str)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid choice2: %v\n", err)
			os.Exit(1)
		}
		stake, err := uint256.FromDecimal(stakeStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid stake: %v\n", err)
			os.Exit(1)
		}

		w := newWorld()
		admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
		player1 := common.HexToAddress("0x0000000000000000000000000000000000000001")
		player2 := common.HexToAddress("0x0000000000000000000000000000000000000002")

		table, err := game.NewTable(game.DefaultConfig(admin), w.engine, nil, w.list, w.coord, w.feed, log.NoLog{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build table: %v\n", err)
			os.Exit(1)
		}

		ext1, att1 := w.engine.EncryptExternal(uint64(choice1), player1)
		id, err := table.Create(player1, ext1, att1, stake)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Create failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Game %d created by %s, stake %s wei\n", id, player1, stake)

		ext2, att2 := w.engine.EncryptExternal(uint64(choice2), player2)
		if err := table.Join(id, player2, ext2, att2, stake.Clone()); err != nil {
			fmt.Fprintf(os.Stderr, "Join failed: %v\n", err)
			os.Exit(1)
		}
		w.pump()

		snap, err := table.Get(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Get failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Game %d: state=%s", id, snap.State)
		switch {
		case snap.Tie:
			fmt.Println(" result=tie (stakes refunded)")
		default:
			fmt.Printf(" winner=%s\n", snap.Winner)
			pot, err := table.ClaimPrize(id, snap.Winner)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ClaimPrize failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Prize claimed: %s wei\n", pot)
		}

		for _, p := range []common.Address{player1, player2} {
			s := table.Stats(p)
			fmt.Printf("Stats %s: played=%d won=%d lost=%d tied=%d winnings=%s\n",
				p, s.Total, s.Wins, s.Losses, s.Ties, s.Winnings)
		}
		w.printRecent(12)
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Demo the encrypted file registry",
	Long: `Upload files with sealed sizes, compare two sizes under encryption,
publish one file, reveal its size through the oracle, and delete it.`,
	Run: func(cmd *cobra.Command, args []string) {
		sizeA, _ := cmd.Flags().GetUint64("size-a")
		sizeB, _ := cmd.Flags().GetUint64("size-b")

		w := newWorld()
		admin := common.HexToAddress("0x00000000000000000000000000000000000000ad")
		owner := common.HexToAddress("0x0000000000000000000000000000000000000001")

		reg := filestore.New(filestore.DefaultConfig(admin), w.engine, w.list, w.coord, w.feed, log.NoLog{})

		idA, err := reg.Upload(owner, "a.dat", sizeA, common.BytesToHash(crypto.Keccak256([]byte("a.dat"))))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}
		idB, err := reg.Upload(owner, "b.dat", sizeB, common.BytesToHash(crypto.Keccak256([]byte("b.dat"))))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Uploaded files %d and %d for %s\n", idA, idB, owner)

		cmpHandle, err := reg.CompareSizes(owner, idA, idB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "CompareSizes failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sealed comparison handle (a <= b): %s\n", cmpHandle.ID)

		if err := reg.SetVisibility(idA, owner, true); err != nil {
			fmt.Fprintf(os.Stderr, "SetVisibility failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("File %d made public\n", idA)

		if _, err := reg.RequestSizeReveal(idA, owner, func(size uint64) {
			fmt.Printf("File %d revealed size: %d bytes\n", idA, size)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "RequestSizeReveal failed: %v\n", err)
			os.Exit(1)
		}
		w.pump()

		if err := reg.Delete(idB, owner); err != nil {
			fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("File %d deleted, remaining files: %v\n", idB, reg.FilesOf(owner))
		w.printRecent(16)
	},
}

func init() {
	playCmd.Flags().String("choice1", "rock", "Creator's choice (rock, scissors, paper)")
	playCmd.Flags().String("choice2", "scissors", "Counterparty's choice (rock, scissors, paper)")
	playCmd.Flags().String("stake", "1000000000000000", "Stake in wei")

	filesCmd.Flags().Uint64("size-a", 1024, "Size of the first file in bytes")
	filesCmd.Flags().Uint64("size-b", 4096, "Size of the second file in bytes")
}

func parseChoice(s string) (game.Choice, error) {
	switch strings.ToLower(s) {
	case "rock":
		return game.Rock, nil
	case "scissors":
		return game.Scissors, nil
	case "paper":
		return game.Paper, nil
	default:
		return 0, fmt.Errorf("unknown choice %q", s)
	}
}
