package memory

import (
	"context"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
)

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

// TxManager はメモリストア用のトランザクションマネージャー
// 各リポジトリ操作は個別にロックされるため、トランザクション自体は何もしない
type TxManager struct{}

func NewTxManager() *TxManager { return &TxManager{} }

func (*TxManager) Begin(context.Context) (transaction.Tx, error) {
	return noopTx{}, nil
}

var _ transaction.Manager = (*TxManager)(nil)
