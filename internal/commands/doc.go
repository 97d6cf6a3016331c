// Package commands defines the tgops CLI.
//
// Commands
//
//   - configure      Write credentials to config.yaml and remember the data directory
//   - login          Sign in with a phone code or a QR code and print the session string
//   - logout         Forget the stored session and cached peers
//   - status         Show whether the stored session is authorized
//   - exec           Run a single operation
//   - run            Run a batch of operations from a JSON or YAML file
//   - operations     List the supported operations
//   - serve          Expose operations as MCP tools over streamable HTTP
//   - peers          Inspect or purge the persisted peer cache
//
// The root command loads the configuration and opens the SQLite store before
// any subcommand runs; the Telegram service is built lazily by the commands
// that talk to Telegram.
package commands
