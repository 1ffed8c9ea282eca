// Load generator for the minigames API. Mints throwaway keypairs, signs token
// ids the way a game client would and POSTs score submissions at a fixed rate.
// Unless the target environment's contract resolves these throwaway addresses
// as owners, submissions exercise the rejection path; that is still the
// expensive path (signature recovery plus a chain call) and the usual target
// of load tests.
package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/etherroyale/minigames-api/internal/ownership"
)

type gameSubmission struct {
	GameType  string `json:"gameType"`
	Score     int64  `json:"score"`
	NFTID     uint64 `json:"nftId"`
	Signature string `json:"signature"`
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Minigames API base URL")
	gameType := flag.String("game", "wanted", "Game type to submit scores for")
	tokens := flag.Int("tokens", 100, "Number of distinct token ids to submit for")
	rate := flag.Int("rate", 10, "Submissions per second")
	duration := flag.Duration("duration", 0, "How long to run (0 = until interrupted)")
	flag.Parse()

	keys := make([]*ecdsa.PrivateKey, *tokens)
	for i := range keys {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generating key: %v\n", err)
			os.Exit(1)
		}
		keys[i] = key
	}
	fmt.Printf("Generated %d keypairs\n", *tokens)

	client := &http.Client{Timeout: 30 * time.Second}

	var sent, accepted, rejected, failed int64

	submit := func() {
		tokenID := uint64(rand.Intn(*tokens))
		sig, err := crypto.Sign(ownership.TokenDigest(tokenID), keys[tokenID])
		if err != nil {
			atomic.AddInt64(&failed, 1)
			return
		}
		// Wallets report the recovery id as 27/28
		sig[64] += 27

		body, _ := json.Marshal(gameSubmission{
			GameType:  *gameType,
			Score:     int64(rand.Intn(5000) + 100),
			NFTID:     tokenID,
			Signature: "0x" + hex.EncodeToString(sig),
		})

		resp, err := client.Post(*serverURL+"/game", "application/json", bytes.NewReader(body))
		if err != nil {
			atomic.AddInt64(&failed, 1)
			return
		}
		resp.Body.Close()

		atomic.AddInt64(&sent, 1)
		switch {
		case resp.StatusCode == http.StatusOK:
			atomic.AddInt64(&accepted, 1)
		case resp.StatusCode == http.StatusForbidden:
			atomic.AddInt64(&rejected, 1)
		default:
			atomic.AddInt64(&failed, 1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	fmt.Printf("Submitting to %s at %d/sec, press Ctrl+C to stop\n", *serverURL, *rate)

	for {
		select {
		case <-sigChan:
			fmt.Printf("\nDone. Sent: %d, Accepted: %d, Rejected: %d, Failed: %d\n",
				atomic.LoadInt64(&sent), atomic.LoadInt64(&accepted),
				atomic.LoadInt64(&rejected), atomic.LoadInt64(&failed))
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Printf("\nDuration reached. Sent: %d, Accepted: %d, Rejected: %d, Failed: %d\n",
					atomic.LoadInt64(&sent), atomic.LoadInt64(&accepted),
					atomic.LoadInt64(&rejected), atomic.LoadInt64(&failed))
				return
			}
			go submit()

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Accepted: %d | Rejected: %d | Failed: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sent), atomic.LoadInt64(&accepted),
				atomic.LoadInt64(&rejected), atomic.LoadInt64(&failed))
		}
	}
}
