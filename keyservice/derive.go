package keyservice

import (
	"crypto/ed25519"
	"crypto/sha256"
	"io"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"

	"github.com/caesar4321/confio-go/state"
)

// derivationSalt versions the derivation scheme. Changing it changes every
// address, so it never changes.
var derivationSalt = []byte("confio/address/v1")

// AddressService derives and resolves per-account on-chain addresses from
// account keys plus server-held peppers.
type AddressService struct {
	km     *KeyManager
	ledger *state.LedgerDB

	// how long a previous pepper ciphertext keeps resolving after a rotation
	graceWindow time.Duration
}

func NewAddressService(km *KeyManager, ledger *state.LedgerDB, graceWindow time.Duration) *AddressService {
	return &AddressService{km: km, ledger: ledger, graceWindow: graceWindow}
}

// ClientKey is the wallet's half of the derivation scheme: the same HKDF
// expansion the client runs after fetching its pepper, yielding the signing
// key behind the derived address. The server only ever calls it to recompute
// the public half.
func ClientKey(accountKey string, pepper []byte) ed25519.PrivateKey {
	r := hkdf.New(sha256.New, pepper, derivationSalt, []byte(accountKey))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		panic(err) // hkdf cannot run dry at 32 bytes
	}
	return ed25519.NewKeyFromSeed(seed)
}

// deriveFromPepper is the address-only derivation. Same inputs, same address,
// across processes and runs.
func deriveFromPepper(accountKey string, pepper []byte) types.Address {
	pub := ClientKey(accountKey, pepper).Public().(ed25519.PublicKey)

	var addr types.Address
	copy(addr[:], pub)
	return addr
}

// EnsureAccount returns the account for accountKey, creating it (pepper +
// address) on first use.
func (as *AddressService) EnsureAccount(accountKey string) (*state.Account, error) {
	acct, err := as.ledger.GetAccount(accountKey)
	if err == nil {
		return acct, nil
	}
	if err != state.ErrAccountNotFound {
		return nil, err
	}

	pepper, err := as.km.NewPepper()
	if err != nil {
		return nil, err
	}
	cipher, err := as.km.SealPepper(pepper)
	if err != nil {
		return nil, err
	}

	acct = &state.Account{
		AccountKey:   accountKey,
		Address:      deriveFromPepper(accountKey, pepper),
		PepperCipher: cipher,
		PepperVer:    1,
	}
	if err := as.ledger.InsertAccount(acct); err != nil {
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"accountKey": accountKey,
		"address":    acct.Address.String(),
	}).Info("derived new account address")
	return acct, nil
}

// DeriveAddress recomputes the address for accountKey. The current pepper
// ciphertext is consulted first; if it cannot be opened (mid master-key
// rotation) the previous ciphertext is tried until the grace window closes.
// A pepper that opens but no longer reproduces the stored address is a
// corruption signal, not a recoverable condition.
func (as *AddressService) DeriveAddress(accountKey string) (types.Address, error) {
	acct, err := as.ledger.GetAccount(accountKey)
	if err != nil {
		return types.Address{}, err
	}

	pepper, err := as.km.OpenPepper(acct.PepperCipher)
	if err != nil {
		if len(acct.PrevCipher) == 0 || !time.Now().UTC().Before(acct.GraceUntil) {
			return types.Address{}, ErrPepperUnavailable
		}
		pepper, err = as.km.OpenPepper(acct.PrevCipher)
		if err != nil {
			return types.Address{}, ErrPepperUnavailable
		}
	}

	addr := deriveFromPepper(accountKey, pepper)
	if addr != acct.Address {
		logger.WithFields(logger.Fields{
			"accountKey": accountKey,
			"security":   "derivation_mismatch",
		}).Error("stored address does not match pepper derivation")
		return types.Address{}, ErrDerivationMismatch
	}
	return addr, nil
}

// RotatePepper re-seals the account's pepper under the manager's current
// master key. The pepper value, and therefore the address, never changes;
// the old ciphertext is retained as previous for the grace window so readers
// holding the old master key can still resolve.
func (as *AddressService) RotatePepper(accountKey string) error {
	acct, err := as.ledger.GetAccount(accountKey)
	if err != nil {
		return err
	}

	pepper, err := as.km.OpenPepper(acct.PepperCipher)
	if err != nil {
		return err
	}
	cipher, err := as.km.SealPepper(pepper)
	if err != nil {
		return err
	}

	grace := time.Now().UTC().Add(as.graceWindow)
	return as.ledger.UpdatePepper(accountKey, cipher, acct.PepperVer+1, grace)
}
