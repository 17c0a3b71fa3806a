// Package config loads task manifests.
//
// A manifest file holds one or more YAML documents, each describing a task:
//
//	kind: WriteFile
//	version: v1
//	metadata:
//	  name: motd
//	  contextualIdentifiers:
//	    - type: ExecutionScope
//	      key: EXCLUDE
//	      contexts:
//	        - type: Command
//	          names: [delete]
//	spec:
//	  targetFile: /etc/motd
//	  data: Welcome
//
// Manifests are validated with struct tags before they become tasks. Task
// order follows file order, then document order. Watcher reloads manifests
// when files change on disk.
package config
