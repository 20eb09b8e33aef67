package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Signer holds one private key and signs transactions for it.
type Signer struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// NewSigner wraps a private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// TransactOpts builds keyed transaction options for chainID.
func (s *Signer) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}

// Wallets is the set of signers the gateway can act for.
type Wallets struct {
	mu      sync.RWMutex
	signers map[common.Address]*Signer
	order   []common.Address
}

// NewWallets returns an empty wallet set.
func NewWallets() *Wallets {
	return &Wallets{signers: make(map[common.Address]*Signer)}
}

// LoadWallets reads hex private keys and, when keystoreDir is set, every key file in it.
func LoadWallets(privateKeys []string, keystoreDir, password string, logger *zap.Logger) (*Wallets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wallets := NewWallets()

	for i, raw := range privateKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		wallets.Add(NewSigner(key))
	}

	if keystoreDir != "" {
		entries, err := os.ReadDir(keystoreDir)
		if err != nil {
			return nil, fmt.Errorf("read keystore dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			path := filepath.Join(keystoreDir, entry.Name())
			keyJSON, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read key file %s: %w", entry.Name(), err)
			}
			key, err := keystore.DecryptKey(keyJSON, password)
			if err != nil {
				logger.Warn("skip undecryptable key file", zap.String("file", entry.Name()), zap.Error(err))
				continue
			}
			wallets.Add(NewSigner(key.PrivateKey))
		}
	}

	logger.Info("wallets loaded", zap.Int("count", wallets.Len()))
	return wallets, nil
}

// Add registers a signer. Later duplicates are ignored.
func (w *Wallets) Add(signer *Signer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.signers[signer.Address]; ok {
		return
	}
	w.signers[signer.Address] = signer
	w.order = append(w.order, signer.Address)
}

// Get returns the signer for address.
func (w *Wallets) Get(address common.Address) (*Signer, error) {
	w.mu.RLock()
	signer, ok := w.signers[address]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address.Hex())
	}
	return signer, nil
}

// First returns the first loaded wallet address.
func (w *Wallets) First() (common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.order) == 0 {
		return common.Address{}, fmt.Errorf("%w: no wallets loaded", ErrWalletNotFound)
	}
	return w.order[0], nil
}

// Len returns the number of loaded wallets.
func (w *Wallets) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}
