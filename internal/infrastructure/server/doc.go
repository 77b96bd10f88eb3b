/*
Package server runs the bridge: one public listener that serves the landing
page on GET / and forwards everything else, WebSocket upgrades included, to
the debug target.

# Lifecycle

	s := server.New(cfg, logger)
	if err := s.Start(); err != nil {
		// *server.BindError when the port is taken
	}
	...
	err := s.Stop()

Stop shuts the public listener and drains the proxy's target connections
concurrently, bounded by Server.ShutdownGrace. Connections still open when
the grace period ends are closed.
*/
package server
