package app

// Config holds runtime wiring options for building the app.
type Config struct {
	Home        string // config directory, e.g. $HOME/.bitcaptcha
	URI         string // wallet connection string
	AmountMsat  int64  // price of one unlock, in millisatoshis
	Description string // invoice memo shown by the paying wallet
}
