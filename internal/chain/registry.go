package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/etherroyale/minigames-api/internal/config"
)

// The only contract method this service needs.
const ownerOfABI = `[{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"owner","type":"address"}]}]`

// Registry reads token ownership from an ERC-721 contract over JSON-RPC.
type Registry struct {
	client      *ethclient.Client
	contract    common.Address
	abi         abi.ABI
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewRegistry connects to the configured RPC endpoint
func NewRegistry(cfg *config.ChainConfig, logger *slog.Logger) (*Registry, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc endpoint: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(ownerOfABI))
	if err != nil {
		return nil, fmt.Errorf("parsing contract abi: %w", err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	logger.Info("connected to ownership registry",
		"rpc_url", cfg.RPCURL,
		"contract", cfg.ContractAddress,
	)

	return &Registry{
		client:      client,
		contract:    common.HexToAddress(cfg.ContractAddress),
		abi:         parsed,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}, nil
}

// Close closes the RPC connection
func (r *Registry) Close() {
	r.client.Close()
}

// OwnerOf returns the current owner of tokenID. One bounded call, no retry:
// the verifier treats any failure as a negative proof.
func (r *Registry) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	input, err := r.abi.Pack("ownerOf", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Address{}, fmt.Errorf("packing ownerOf call: %w", err)
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{
		To:   &r.contract,
		Data: input,
	}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("calling ownerOf: %w", err)
	}

	results, err := r.abi.Unpack("ownerOf", output)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpacking ownerOf result: %w", err)
	}
	owner, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected ownerOf result type %T", results[0])
	}
	return owner, nil
}
