package archive

// Timestamps are unix seconds in every dialect.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		pub_time INTEGER NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		is_delete INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_pub_time ON news (pub_time)`,
	`CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		news_id INTEGER NOT NULL REFERENCES news(id),
		algorithm TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '',
		keywords_num INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		is_delete INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keywords_news_id ON keywords (news_id)`,
	`CREATE TABLE IF NOT EXISTS cloud (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		category TEXT NOT NULL,
		keywords_num INTEGER NOT NULL,
		algorithm TEXT NOT NULL,
		cloud_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		is_delete INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		category TEXT NOT NULL,
		keywords_num INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		is_delete INTEGER NOT NULL DEFAULT 0
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		url VARCHAR(255) NOT NULL DEFAULT '',
		category VARCHAR(255) NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL DEFAULT '',
		pub_time BIGINT NOT NULL,
		body LONGTEXT NOT NULL,
		created_at BIGINT NOT NULL,
		is_delete TINYINT NOT NULL DEFAULT 0,
		INDEX idx_news_pub_time (pub_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS keywords (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		news_id BIGINT NOT NULL,
		algorithm VARCHAR(255) NOT NULL,
		keywords TEXT NOT NULL,
		keywords_num INT NOT NULL,
		created_at BIGINT NOT NULL,
		is_delete TINYINT NOT NULL DEFAULT 0,
		INDEX idx_keywords_news_id (news_id),
		FOREIGN KEY (news_id) REFERENCES news(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS cloud (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		year INT NOT NULL,
		month INT NOT NULL,
		category VARCHAR(255) NOT NULL,
		keywords_num INT NOT NULL,
		algorithm VARCHAR(255) NOT NULL,
		cloud_url VARCHAR(255) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		is_delete TINYINT NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS summary (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		year INT NOT NULL,
		month INT NOT NULL,
		category VARCHAR(255) NOT NULL,
		keywords_num INT NOT NULL,
		keyword VARCHAR(255) NOT NULL,
		algorithm VARCHAR(255) NOT NULL,
		summary LONGTEXT NOT NULL,
		created_at BIGINT NOT NULL,
		is_delete TINYINT NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS news (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		pub_time BIGINT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		is_delete SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_pub_time ON news (pub_time)`,
	`CREATE TABLE IF NOT EXISTS keywords (
		id BIGSERIAL PRIMARY KEY,
		news_id BIGINT NOT NULL REFERENCES news(id),
		algorithm TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '',
		keywords_num INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		is_delete SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keywords_news_id ON keywords (news_id)`,
	`CREATE TABLE IF NOT EXISTS cloud (
		id BIGSERIAL PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		category TEXT NOT NULL,
		keywords_num INTEGER NOT NULL,
		algorithm TEXT NOT NULL,
		cloud_url TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		is_delete SMALLINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS summary (
		id BIGSERIAL PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		category TEXT NOT NULL,
		keywords_num INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		is_delete SMALLINT NOT NULL DEFAULT 0
	)`,
}

func schemaFor(driver string) []string {
	switch driver {
	case DriverMySQL:
		return mysqlSchema
	case DriverPostgres, "postgres":
		return postgresSchema
	default:
		return sqliteSchema
	}
}
