package state

var (
	accountTable = `CREATE TABLE IF NOT EXISTS account (
		accountKey VARCHAR(128) PRIMARY KEY NOT NULL,
		address CHAR(58) UNIQUE NOT NULL,
		optInSet TEXT NOT NULL DEFAULT '',
		pepperCipher BLOB NOT NULL,
		pepperVer INTEGER NOT NULL DEFAULT 1,
		prevCipher BLOB,
		graceUntil INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT chk_accountKey CHECK (accountKey != ''),
		CONSTRAINT chk_address CHECK (length(address) = 58)
	);`

	recordTable = `CREATE TABLE IF NOT EXISTS transaction_record (
		id VARCHAR(36) PRIMARY KEY NOT NULL,
		opKind VARCHAR(24) NOT NULL,
		actor VARCHAR(128) NOT NULL,
		counterparty VARCHAR(128) NOT NULL DEFAULT '',
		amount BIGINT UNSIGNED NOT NULL,
		assetId BIGINT UNSIGNED NOT NULL,
		sponsorCost BIGINT UNSIGNED NOT NULL DEFAULT 0,
		status VARCHAR(24) NOT NULL,
		groupId VARCHAR(64),
		txIds TEXT NOT NULL DEFAULT '',
		lastValid BIGINT UNSIGNED NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		createdAt INTEGER NOT NULL,
		updatedAt INTEGER NOT NULL,
		CONSTRAINT uq_groupId UNIQUE (groupId),
		CONSTRAINT chk_status CHECK (status IN (
			'preparing', 'pending_client_sign', 'pending_submit', 'submitted',
			'confirmed', 'failed_expired', 'failed_rejected', 'expired'))
	);`

	recordStatusIndex = `CREATE INDEX IF NOT EXISTS idx_record_status
		ON transaction_record (status);`

	// Deposits discovered by the inbound scanner are deduplicated on the
	// chain txid, one record per observed transaction.
	depositTxIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_record_deposit_txid
		ON transaction_record (txIds) WHERE opKind = 'deposit';`

	cursorTable = `CREATE TABLE IF NOT EXISTS indexer_cursor (
		scanner VARCHAR(32) PRIMARY KEY NOT NULL,
		lastRound BIGINT UNSIGNED NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	);`

	sponsorTable = `CREATE TABLE IF NOT EXISTS sponsor_state (
		address CHAR(58) PRIMARY KEY NOT NULL,
		balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
		reserved BIGINT UNSIGNED NOT NULL DEFAULT 0,
		minReserve BIGINT UNSIGNED NOT NULL DEFAULT 0,
		updatedAt INTEGER NOT NULL,
		CONSTRAINT chk_address CHECK (length(address) = 58)
	);`

	balanceTable = `CREATE TABLE IF NOT EXISTS balance (
		accountKey VARCHAR(128) NOT NULL,
		assetId BIGINT UNSIGNED NOT NULL,
		amount BIGINT NOT NULL DEFAULT 0,
		lastAppliedRound BIGINT UNSIGNED NOT NULL DEFAULT 0,
		PRIMARY KEY (accountKey, assetId)
	);`

	// Marker rows that make ledger mutations idempotent: one row per
	// (txid, position) ever applied.
	appliedDeltaTable = `CREATE TABLE IF NOT EXISTS applied_delta (
		txId CHAR(52) NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (txId, position)
	);`
)
