// Package config resolves the place server configuration.
//
// Every setting has a default, a flag, a PLACE_* environment variable and a
// config file key. Later sources win:
//
//	defaults < config file < environment < flags
//
// The environment variable for a key is its upper-cased name with dashes
// replaced by underscores, prefixed with PLACE_:
//
//	PLACE_SAVE_LOCATION=/var/lib/place/canvas.png
//	PLACE_SAVE_INTERVAL=5m
//
// A config file is only read when --config (or PLACE_CONFIG) names one:
//
//	address: 0.0.0.0:8080
//	width: 1000
//	height: 1000
//	save-interval: 2m
//	save-all-images: true
//
// # Usage
//
//	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
//	config.RegisterFlags(fs)
//	_ = fs.Parse(os.Args[1:])
//	cfg, err := config.Load(fs)
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
package config
