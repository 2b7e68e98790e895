// Package config loads emuget's persisted settings.
//
// Settings live in a Lua file evaluated inside a sandboxed gopher-lua VM. The
// file must assign a global "emuget" table:
//
//	emuget = {
//	    download = {
//	        disable_ipv6 = true,
//	        remove_old_engine_log = true,
//	        auto_delete_after_install = false,
//	        engine_path = platform.when(platform.is_windows, "C:/tools/aria2c.exe"),
//	        max_download_limit = "8M",
//	    },
//	    network = {
//	        use_doh = false,
//	        proxy = "http://127.0.0.1:7890",
//	        use_mirror = true,
//	        mirror_file = "mirrors.yaml",
//	        user_agent = "",
//	    },
//	    verify = {
//	        keyring = "keys/release.asc",
//	    },
//	}
//
// The read-only "platform" table (see package platform) is available while
// the file runs. Values from the environment (EMUGET_*) are applied after
// the file, and a .env file next to the settings is loaded first if present.
//
// The sandbox removes os, io, debug, require, dofile, loadfile, load and
// loadstring so settings stay declarative.
package config
