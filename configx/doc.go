// Package configx provides layered configuration for the lifecycle host.
//
// # Overview
//
// configx merges the defaults each component declares with what the
// application finds on disk and in its environment. Sources, from lowest to
// highest precedence:
//
//   - component defaults passed to Load
//   - <UserConfigDir>/<app>/config.{json,yaml,yml,toml}
//   - ./<app>.{json,yaml,yml,toml}
//   - ./.env, keys prefixed <APP>_
//   - process environment, keys prefixed <APP>_
//
// Environment keys are lower-cased after the prefix is removed, and "__"
// nests them: MYAPP_DB__PORT=5433 sets db.port to 5433.
//
// # Binding
//
// Config.Bind decodes a tree through yaml tags and validates the result with
// go-playground/validator. BindEnv and BindMap bind flat values through
// env/default tags, which suits process-level settings.
//
// # Usage
//
//	store := configx.NewStore()
//	cfg, err := store.Load(ctx, "myapp", nil)
//	if err != nil { return err }
//	fmt.Println(cfg.Env())
package configx
