// Package manifest declares which upstream files the service needs.
//
// The manifest is a static YAML document listing logical tables, binary assets and
// the consumers that read them. A sync downloads only the union of what the active
// consumers declare, so adding a consumer is a manifest change rather than a code
// change.
//
//	text_map_path: TextMap/TextMap{lang}.json
//	tables:
//	  - name: Weapon
//	    path: ExcelBinOutput/WeaponExcelConfigData.json
//	    obfuscated: true
//	consumers:
//	  - name: weapons
//	    tables: [Weapon]
package manifest
