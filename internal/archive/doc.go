// Package archive detects compressed containers by signature and streams
// their members to a staging directory.
//
// Detection never trusts the file extension: a ".zip" without the zip
// signature is not an archive. Supported containers are zip, 7z, rar, tar,
// and single-stream gzip, bzip2 and xz (including compressed tarballs).
// Member names are confined to the destination directory, and an Expander
// stops once its byte budget is spent so a decompression bomb fails the
// parent item instead of filling the disk.
package archive
