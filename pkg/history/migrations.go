package history

var migrations = []string{
	// 001 initial schema
	`
BEGIN;
CREATE TABLE migrations
(
    version INT PRIMARY KEY,
    created TIMESTAMP WITH TIME ZONE NOT NULL
);
INSERT INTO migrations (version, created) VALUES (1, NOW());
CREATE TABLE deployment_attempt
(
    id       VARCHAR(64) PRIMARY KEY,
    workflow VARCHAR(32) NOT NULL,
    host     VARCHAR(255) NOT NULL,
    ref      VARCHAR(255) NOT NULL,
    database_name VARCHAR(255) NOT NULL,
    backup   VARCHAR(255) NOT NULL DEFAULT '',
    state    VARCHAR(32) NOT NULL,
    created  TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX deployment_attempt_host ON deployment_attempt (host, created);
COMMIT;
`,
}
