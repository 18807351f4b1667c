package banner

import (
	"fmt"

	"loomdb/pkg/config"
)

const banner = `
██╗      ██████╗  ██████╗ ███╗   ███╗██████╗ ██████╗
██║     ██╔═══██╗██╔═══██╗████╗ ████║██╔══██╗██╔══██╗
██║     ██║   ██║██║   ██║██╔████╔██║██║  ██║██████╔╝
██║     ██║   ██║██║   ██║██║╚██╔╝██║██║  ██║██╔══██╗
███████╗╚██████╔╝╚██████╔╝██║ ╚═╝ ██║██████╔╝██████╔╝
╚══════╝ ╚═════╝  ╚═════╝ ╚═╝     ╚═╝╚═════╝ ╚═════╝
`

// PrintWithEff prints the startup banner using an EffectiveConfigResult
// so runtime context (addr, db path, config source) is displayed centrally.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/threads/t1/messages' -d '{\"body\": \"hello\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/threads/t1/messages?limit=10'")
	fmt.Println("curl 'http://<host>:<port>/v1/inbox'")
	fmt.Println("\n== Production? =================================================")
	be := 0
	fe := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}

	tlsOK := false
	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		tlsOK = true
	}
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if eff.DBPath != "" {
		fmt.Printf("- DB Path: %s\n", eff.DBPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or LOOMDB_DB_PATH)")
	}

	if eff.Config != nil && eff.Config.Maintenance.Enabled {
		cron := eff.Config.Maintenance.Cron
		if cron == "" {
			cron = "0 3 * * *"
		}
		fmt.Printf("- Maintenance: enabled (cron=%s)\n", cron)
	} else {
		fmt.Println("- Maintenance: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
