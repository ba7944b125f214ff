package chain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	ClusterMainnet  = "mainnet"
	ClusterDevnet   = "devnet"
	ClusterTestnet  = "testnet"
	ClusterLocalnet = "localnet"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = solana.LAMPORTS_PER_SOL

// NormalizeCluster maps accepted aliases onto the canonical cluster names.
func NormalizeCluster(cluster string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cluster)) {
	case "mainnet", "mainnet-beta":
		return ClusterMainnet, nil
	case "devnet":
		return ClusterDevnet, nil
	case "testnet":
		return ClusterTestnet, nil
	case "localnet", "localhost":
		return ClusterLocalnet, nil
	}
	return "", fmt.Errorf("unknown cluster %q", cluster)
}

// EndpointFor returns the public RPC endpoint of cluster.
func EndpointFor(cluster string) (string, error) {
	name, err := NormalizeCluster(cluster)
	if err != nil {
		return "", err
	}
	switch name {
	case ClusterMainnet:
		return rpc.MainNetBeta_RPC, nil
	case ClusterTestnet:
		return rpc.TestNet_RPC, nil
	case ClusterLocalnet:
		return rpc.LocalNet_RPC, nil
	default:
		return rpc.DevNet_RPC, nil
	}
}

// ExplorerURL links sig on the Solana explorer for cluster.
func ExplorerURL(sig solana.Signature, cluster string) string {
	url := "https://explorer.solana.com/tx/" + sig.String()
	name, err := NormalizeCluster(cluster)
	switch {
	case err != nil:
		return url + "?cluster=" + cluster
	case name == ClusterMainnet:
		return url
	case name == ClusterLocalnet:
		return url + "?cluster=custom"
	default:
		return url + "?cluster=" + name
	}
}

func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(LamportsPerSOL)
}
