// Package logging builds the zap loggers used by the server and the
// network sandbox.
//
// Production mode writes JSON; development mode writes colored console
// output at debug level. Each subsystem takes a named child:
//
//	logger := logging.FromEnv(cfg.Logging.Level, cfg.Logging.Development)
//	dialer := logger.Component("dialer")
//	dialer.Debug("address denied by rules", zap.String("host", host))
//
// An invalid level yields a no-op logger rather than an error.
package logging
