// Package queue owns the compression queue data model and its durable
// snapshot.
//
// Projects group FileTasks that share EncodeSettings and an output root. Status
// values form a closed set shared by projects and files; DeriveStatus computes a
// project's terminal status from its files. Snapshot is the serializable
// projection of the whole queue and is written after every transition.
//
// Store abstracts snapshot persistence. Three backends are available and chosen
// by configuration: an atomically replaced JSON file (default), a SQLite
// database managed with goose migrations, and a Pebble key/value store. All of
// them hand snapshots to RecoverSnapshot on load so work interrupted by a crash
// restarts from the beginning of the interrupted file.
package queue
